package risk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStore_LoadMissing verifies a missing state file yields a
// clean state.
func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	state, err := store.Load()
	require.NoError(t, err)
	assert.True(t, state.DailyLoss.IsZero())
	assert.Empty(t, state.Positions)
	assert.Empty(t, state.Ledger)
}

// TestFileStore_RoundTrip verifies save then load returns the same
// state.
func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	state := NewState()
	state.DailyLoss = dec("-42.5")
	state.Profit = dec("13.37")
	state.Positions["BTCUSDT"] = Position{
		Symbol:     "BTCUSDT",
		Size:       dec("0.5"),
		EntryPrice: dec("30000"),
		OrderID:    "o1",
		OpenedAt:   time.Now().UTC(),
	}
	state.Ledger = append(state.Ledger, LedgerEntry{
		OrderID: "o1", Symbol: "BTCUSDT", Side: "Buy",
		Amount: dec("0.5"), Price: dec("30000"),
	})
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "-42.5", loaded.DailyLoss.String())
	assert.Equal(t, "13.37", loaded.Profit.String())
	require.Len(t, loaded.Ledger, 1)
	assert.Equal(t, "o1", loaded.Ledger[0].OrderID)
	assert.Equal(t, "30000", loaded.Positions["BTCUSDT"].EntryPrice.String())
}

// TestFileStore_KeepsBackup verifies the previous snapshot survives
// as a .bak file.
func TestFileStore_KeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	first := NewState()
	first.Profit = dec("1")
	require.NoError(t, store.Save(first))

	second := NewState()
	second.Profit = dec("2")
	require.NoError(t, store.Save(second))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), `"profit": "1"`)

	live, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "2", live.Profit.String())
}

// TestFileStore_CreatesParentDir verifies nested state paths work.
func TestFileStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(NewState()))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
