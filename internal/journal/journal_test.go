package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// TestJournal_OpenClose covers the record lifecycle: open a trade,
// close it, read it back.
func TestJournal_OpenClose(t *testing.T) {
	j := openTestJournal(t)
	openedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	recordID, err := j.RecordOpen("o1", "BTCUSDT", "Buy", "0.5", "30000", openedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, recordID)

	trades, err := j.ListTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, StatusOpen, trades[0].Status)
	assert.Equal(t, "0.5", trades[0].Size)

	closedAt := openedAt.Add(2 * time.Hour)
	require.NoError(t, j.RecordClose("o1", "BTCUSDT", "31000", "15.5", "484.5", closedAt))

	trades, err = j.ListTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, StatusClosed, trades[0].Status)
	assert.Equal(t, "31000", trades[0].ExitPrice)
	assert.Equal(t, "484.5", trades[0].PnL)
	assert.Equal(t, recordID, trades[0].RecordID)
}

// TestJournal_CloseWithoutOpen verifies an orphan close is inserted
// rather than lost.
func TestJournal_CloseWithoutOpen(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.RecordClose("o9", "ETHUSDT", "2000", "1", "-50", time.Now().UTC()))

	trades, err := j.ListTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, StatusClosed, trades[0].Status)
	assert.Equal(t, "-50", trades[0].PnL)
}

// TestJournal_ListOrderAndLimit verifies newest-first ordering and
// the limit.
func TestJournal_ListOrderAndLimit(t *testing.T) {
	j := openTestJournal(t)
	now := time.Now().UTC()

	for i, symbol := range []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"} {
		_, err := j.RecordOpen("", symbol, "Buy", "1", "100", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	trades, err := j.ListTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// ULID record ids sort by creation time, so newest comes first.
	assert.Equal(t, "CCCUSDT", trades[0].Symbol)
	assert.Equal(t, "BBBUSDT", trades[1].Symbol)

	all, err := j.ListTrades(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// TestNewID verifies ids are unique and monotonically increasing.
func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.Len(t, id, 26)
		assert.False(t, seen[id])
		seen[id] = true
		assert.Greater(t, id, prev)
		prev = id
	}
}
