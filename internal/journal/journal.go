// Package journal records opened and closed trades in a SQLite
// database for audit and reporting.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	record_id   TEXT PRIMARY KEY,
	order_id    TEXT,
	symbol      TEXT NOT NULL,
	side        TEXT,
	size        TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price  TEXT,
	commission  TEXT,
	pnl         TEXT,
	status      TEXT NOT NULL,
	opened_at   TIMESTAMP,
	closed_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
`

// Trade statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// TradeRecord is one journaled trade. Monetary fields are stored as
// decimal strings to keep full precision in SQLite.
type TradeRecord struct {
	RecordID   string
	OrderID    string
	Symbol     string
	Side       string
	Size       string
	EntryPrice string
	ExitPrice  string
	Commission string
	PnL        string
	Status     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Journal is a SQLite-backed trade log.
type Journal struct {
	db *sql.DB
}

// Open opens (and initializes) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordOpen journals a newly opened trade and returns its record id.
func (j *Journal) RecordOpen(orderID, symbol, side, size, entryPrice string, openedAt time.Time) (string, error) {
	recordID := NewID()
	_, err := j.db.Exec(`
		INSERT INTO trades
		(record_id, order_id, symbol, side, size, entry_price, status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recordID, orderID, symbol, side, size, entryPrice, StatusOpen, openedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record open trade: %w", err)
	}
	return recordID, nil
}

// RecordClose marks the open trade for symbol/orderID as closed with
// its realized outcome.
func (j *Journal) RecordClose(orderID, symbol, exitPrice, commission, pnl string, closedAt time.Time) error {
	res, err := j.db.Exec(`
		UPDATE trades
		SET exit_price = ?, commission = ?, pnl = ?, status = ?, closed_at = ?
		WHERE symbol = ? AND status = ? AND (order_id = ? OR ? = '')`,
		exitPrice, commission, pnl, StatusClosed, closedAt,
		symbol, StatusOpen, orderID, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to record trade close: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// No matching open trade; keep the close anyway so the ledger
		// stays complete.
		_, err = j.db.Exec(`
			INSERT INTO trades
			(record_id, order_id, symbol, size, entry_price, exit_price, commission, pnl, status, closed_at)
			VALUES (?, ?, ?, '0', '0', ?, ?, ?, ?, ?)`,
			NewID(), orderID, symbol, exitPrice, commission, pnl, StatusClosed, closedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record orphan trade close: %w", err)
		}
	}
	return nil
}

// ListTrades returns journaled trades, newest first. limit <= 0 means
// no limit.
func (j *Journal) ListTrades(limit int) ([]TradeRecord, error) {
	query := `
		SELECT record_id, order_id, symbol, side, size, entry_price,
		       COALESCE(exit_price, ''), COALESCE(commission, ''), COALESCE(pnl, ''),
		       status, COALESCE(opened_at, CURRENT_TIMESTAMP), COALESCE(closed_at, CURRENT_TIMESTAMP)
		FROM trades ORDER BY record_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.RecordID, &t.OrderID, &t.Symbol, &t.Side, &t.Size, &t.EntryPrice,
			&t.ExitPrice, &t.Commission, &t.PnL, &t.Status, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
