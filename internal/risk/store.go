package risk

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// Position is one open position, at most one per symbol. StopLoss is
// relative (-0.01 means one percent below entry).
type Position struct {
	Symbol     string          `json:"symbol"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	OrderID    string          `json:"order_id,omitempty"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// LedgerEntry is one open order in the exposure ledger. Several
// entries may exist per symbol. Amount is the quote-currency notional
// (size times entry price); the exposure checks in CanTrade sum it.
type LedgerEntry struct {
	OrderID   string          `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	OrderType string          `json:"order_type"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// State is the durable risk-accountant state. It is persisted after
// every mutation and reloaded verbatim at startup.
type State struct {
	DailyLoss   decimal.Decimal     `json:"daily_loss"`
	WeeklyLoss  decimal.Decimal     `json:"weekly_loss"`
	MonthlyLoss decimal.Decimal     `json:"monthly_loss"`
	Profit      decimal.Decimal     `json:"profit"`
	Positions   map[string]Position `json:"open_positions"`
	Ledger      []LedgerEntry       `json:"ledger"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		DailyLoss:   decimal.Zero,
		WeeklyLoss:  decimal.Zero,
		MonthlyLoss: decimal.Zero,
		Profit:      decimal.Zero,
		Positions:   make(map[string]Position),
	}
}

// Store persists risk state. Save must be durable before it returns:
// a process restart recovers exactly the last saved state.
type Store interface {
	Load() (*State, error)
	Save(state *State) error
}

// FileStore keeps the state in a single JSON file, written atomically
// via a temp file and rename, with a backup of the previous snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path, creating the
// parent directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the last saved state. A missing file yields a clean
// state, not an error.
func (fs *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", fs.path, err)
	}
	if state.Positions == nil {
		state.Positions = make(map[string]Position)
	}
	return &state, nil
}

// Save writes the state durably. The previous snapshot is kept as a
// backup next to the live file.
func (fs *FileStore) Save(state *State) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if _, err := os.Stat(fs.path); err == nil {
		if err := copyFile(fs.path, fs.path+".bak"); err != nil {
			return fmt.Errorf("failed to back up state file: %w", err)
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
