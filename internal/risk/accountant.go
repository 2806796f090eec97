package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Window identifies one loss-accumulation window.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Valid reports whether w names a known window.
func (w Window) Valid() bool {
	return w == WindowDaily || w == WindowWeekly || w == WindowMonthly
}

// Trade describes a position to register after a successful fill.
type Trade struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	OrderID    string
	Side       string
	OrderType  string
}

// ClosedTrade is the realized outcome of CloseTrade, handed to the
// journal and notifier.
type ClosedTrade struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Commission decimal.Decimal
	PnL        decimal.Decimal
	OrderID    string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Status is a read-only snapshot of the accountant state.
type Status struct {
	DailyLoss    decimal.Decimal
	WeeklyLoss   decimal.Decimal
	MonthlyLoss  decimal.Decimal
	Profit       decimal.Decimal
	Positions    map[string]Position
	OpenExposure decimal.Decimal
	OpenOrders   int
}

// Accountant owns the mutable risk state: open positions, the open
// order ledger, and the three loss windows. All mutating operations
// persist synchronously before returning, so a restart resumes from
// the last committed state. Construct it once, pass it to callers,
// Close it at shutdown.
type Accountant struct {
	mu       sync.Mutex
	limits   LimitSet
	store    Store
	reporter Reporter
	log      *zap.Logger
	state    *State
	pending  []Event
	closed   bool
}

// NewAccountant validates the limit set, loads the persisted state
// and returns a ready accountant. reporter may be nil.
func NewAccountant(limits LimitSet, store Store, reporter Reporter, log *zap.Logger) (*Accountant, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load risk state: %w", err)
	}
	return &Accountant{
		limits:   limits.clone(),
		store:    store,
		reporter: reporter,
		log:      log.Named("risk"),
		state:    state,
	}, nil
}

// CanTrade reports whether a new trade of tradeAmount (quote-currency
// notional) on symbol is allowed. The ledger tracks exposure in the
// same unit, so open notionals and the proposed one add up directly.
// Checks run in a fixed order and short-circuit
// on the first failure; the breached rule name is returned and
// reported as a risk event. stopLoss is relative; pass zero when no
// stop is planned.
func (a *Accountant) CanTrade(balance, tradeAmount decimal.Decimal, symbol string, stopLoss decimal.Decimal) (bool, string) {
	defer a.dispatchPending()
	a.mu.Lock()
	defer a.mu.Unlock()

	limits := a.limits.For(symbol)

	if len(a.state.Positions) >= limits.MaxOpenPositions {
		a.reject(RuleMaxOpenPositions, symbol, map[string]string{
			"open_positions": fmt.Sprintf("%d", len(a.state.Positions)),
		})
		return false, RuleMaxOpenPositions
	}

	totalOpen := a.openExposureLocked(symbol)
	proposed := totalOpen.Add(tradeAmount)

	if proposed.GreaterThan(balance.Mul(limits.MaxTradeSizePct)) {
		a.reject(RuleSumTradeSizePct, symbol, map[string]string{
			"total_open": totalOpen.String(),
			"try_add":    tradeAmount.String(),
		})
		return false, RuleSumTradeSizePct
	}

	if proposed.GreaterThan(limits.MaxTradeSizeAbs) {
		a.reject(RuleSumTradeSizeAbs, symbol, map[string]string{
			"total_open": totalOpen.String(),
			"try_add":    tradeAmount.String(),
		})
		return false, RuleSumTradeSizeAbs
	}

	if tradeAmount.GreaterThan(balance) {
		a.reject(RuleInsufficientBalance, symbol, map[string]string{
			"balance":      balance.String(),
			"trade_amount": tradeAmount.String(),
		})
		return false, RuleInsufficientBalance
	}

	if !stopLoss.IsZero() {
		riskPerPos := tradeAmount.Mul(stopLoss.Abs())
		if riskPerPos.GreaterThan(balance.Mul(limits.MaxLossPerPosition)) {
			a.reject(RuleMaxLossPerPosition, symbol, map[string]string{
				"risk_per_position": riskPerPos.String(),
			})
			return false, RuleMaxLossPerPosition
		}
	}

	if rule := a.windowBreachLocked(balance, limits); rule != "" {
		a.reject(rule, symbol, nil)
		return false, rule
	}

	return true, ""
}

// windowBreachLocked returns the rule name of the first loss window
// whose accumulated loss magnitude exceeds its limit. A breached
// window blocks all trading until its explicit reset.
func (a *Accountant) windowBreachLocked(balance decimal.Decimal, limits Limits) string {
	if a.state.DailyLoss.IsNegative() {
		magnitude := a.state.DailyLoss.Abs()
		if magnitude.GreaterThan(balance.Mul(limits.MaxDailyLossPct)) ||
			magnitude.GreaterThan(limits.MaxDailyLossAbs) {
			return RuleMaxDailyLoss
		}
	}
	if a.state.WeeklyLoss.IsNegative() && a.state.WeeklyLoss.Abs().GreaterThan(limits.MaxWeeklyLoss) {
		return RuleMaxWeeklyLoss
	}
	if a.state.MonthlyLoss.IsNegative() && a.state.MonthlyLoss.Abs().GreaterThan(limits.MaxMonthlyLoss) {
		return RuleMaxMonthlyLoss
	}
	return ""
}

// RegisterTrade records an open position and its ledger entry, then
// persists. Re-registering a symbol that is already open overwrites
// the position; callers needing exclusivity serialize per symbol.
func (a *Accountant) RegisterTrade(t Trade) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	a.state.Positions[t.Symbol] = Position{
		Symbol:     t.Symbol,
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		StopLoss:   t.StopLoss,
		OrderID:    t.OrderID,
		OpenedAt:   now,
	}

	// Ledger amounts are quote-currency notionals so they sum in the
	// same unit CanTrade compares against balance and MaxTradeSizeAbs.
	entry := LedgerEntry{
		OrderID:   t.OrderID,
		Symbol:    t.Symbol,
		Side:      t.Side,
		Amount:    t.Size.Mul(t.EntryPrice),
		Price:     t.EntryPrice,
		OrderType: t.OrderType,
		OpenedAt:  now,
	}
	replaced := false
	for i := range a.state.Ledger {
		if t.OrderID != "" && a.state.Ledger[i].OrderID == t.OrderID {
			a.state.Ledger[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		a.state.Ledger = append(a.state.Ledger, entry)
	}

	if err := a.store.Save(a.state); err != nil {
		return fmt.Errorf("failed to persist risk state: %w", err)
	}
	a.log.Info("position registered",
		zap.String("symbol", t.Symbol),
		zap.String("size", t.Size.String()),
		zap.String("entry_price", t.EntryPrice.String()),
		zap.String("order_id", t.OrderID))
	return nil
}

// CloseTrade realizes the position on symbol at exitPrice, accrues
// pnl into profit and, when negative, into all three loss windows,
// removes the position and its ledger entries, and persists. When
// commission is nil it defaults to |exitPrice × size| × commissionPct.
// Closing a symbol with no open position is a reported-but-non-fatal
// condition: it logs and returns (nil, nil), leaving state untouched.
func (a *Accountant) CloseTrade(symbol string, exitPrice decimal.Decimal, commission *decimal.Decimal) (*ClosedTrade, error) {
	defer a.dispatchPending()
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.state.Positions[symbol]
	if !ok {
		a.log.Warn("close requested for unknown position", zap.String("symbol", symbol))
		return nil, nil
	}

	limits := a.limits.For(symbol)
	fee := decimal.Zero
	if commission != nil {
		fee = *commission
	} else {
		fee = exitPrice.Mul(pos.Size).Abs().Mul(limits.CommissionPct)
	}

	pnl := exitPrice.Sub(pos.EntryPrice).Mul(pos.Size).Sub(fee)

	a.state.Profit = a.state.Profit.Add(pnl)
	if pnl.IsNegative() {
		a.state.DailyLoss = a.state.DailyLoss.Add(pnl)
		a.state.WeeklyLoss = a.state.WeeklyLoss.Add(pnl)
		a.state.MonthlyLoss = a.state.MonthlyLoss.Add(pnl)
	}

	delete(a.state.Positions, symbol)
	kept := a.state.Ledger[:0]
	for _, e := range a.state.Ledger {
		if e.Symbol != symbol {
			kept = append(kept, e)
		}
	}
	a.state.Ledger = kept

	if err := a.store.Save(a.state); err != nil {
		return nil, fmt.Errorf("failed to persist risk state: %w", err)
	}

	a.log.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("pnl", pnl.StringFixed(2)),
		zap.String("commission", fee.StringFixed(2)))

	a.checkWindowLimitsLocked(limits)

	return &ClosedTrade{
		Symbol:     symbol,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Commission: fee,
		PnL:        pnl,
		OrderID:    pos.OrderID,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   time.Now().UTC(),
	}, nil
}

// checkWindowLimitsLocked reports every window whose accumulated loss
// now exceeds its absolute limit. Called after each close.
func (a *Accountant) checkWindowLimitsLocked(limits Limits) {
	windows := []struct {
		rule  string
		loss  decimal.Decimal
		limit decimal.Decimal
	}{
		{RuleMaxDailyLoss, a.state.DailyLoss, limits.MaxDailyLossAbs},
		{RuleMaxWeeklyLoss, a.state.WeeklyLoss, limits.MaxWeeklyLoss},
		{RuleMaxMonthlyLoss, a.state.MonthlyLoss, limits.MaxMonthlyLoss},
	}
	for _, w := range windows {
		if w.loss.IsNegative() && w.loss.Abs().GreaterThan(w.limit) {
			a.log.Error("loss window limit exceeded",
				zap.String("rule", w.rule),
				zap.String("loss", w.loss.StringFixed(2)),
				zap.String("limit", w.limit.String()))
			a.reject(w.rule, "", map[string]string{"loss": w.loss.String()})
		}
	}
}

// DynamicPositionSize computes balance × riskFraction / |stopLoss|.
// riskFraction defaults to the default entry's MaxLossPerPosition. A
// zero stop loss is reported and yields size zero, never a division
// by zero.
func (a *Accountant) DynamicPositionSize(balance, stopLoss decimal.Decimal, riskFraction *decimal.Decimal) decimal.Decimal {
	defer a.dispatchPending()
	a.mu.Lock()
	defer a.mu.Unlock()

	fraction := a.limits.For(DefaultKey).MaxLossPerPosition
	if riskFraction != nil {
		fraction = *riskFraction
	}
	if stopLoss.IsZero() {
		a.log.Warn("stop loss must not be zero")
		a.reject(RuleZeroStopLoss, "", nil)
		return decimal.Zero
	}
	return balance.Mul(fraction).Div(stopLoss.Abs())
}

// ResetLosses zeroes exactly one window and persists. The other
// windows are untouched.
func (a *Accountant) ResetLosses(window Window) error {
	if !window.Valid() {
		return fmt.Errorf("unknown loss window %q", window)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch window {
	case WindowDaily:
		a.state.DailyLoss = decimal.Zero
	case WindowWeekly:
		a.state.WeeklyLoss = decimal.Zero
	case WindowMonthly:
		a.state.MonthlyLoss = decimal.Zero
	}
	if err := a.store.Save(a.state); err != nil {
		return fmt.Errorf("failed to persist risk state: %w", err)
	}
	a.log.Info("loss window reset", zap.String("window", string(window)))
	return nil
}

// UpdateLimits replaces the limits for one symbol at runtime, or the
// default entry when symbol is empty. The resulting set is validated
// before it takes effect.
func (a *Accountant) UpdateLimits(symbol string, limits Limits) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := symbol
	if key == "" {
		key = DefaultKey
	}
	next := a.limits.clone()
	next[key] = limits
	if err := next.Validate(); err != nil {
		return err
	}
	a.limits = next
	a.log.Info("risk limits updated", zap.String("symbol", key))
	return nil
}

// Limits returns the limits effective for symbol.
func (a *Accountant) Limits(symbol string) Limits {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limits.For(symbol)
}

// Position returns the open position for symbol, if any.
func (a *Accountant) Position(symbol string) (Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos, ok := a.state.Positions[symbol]
	return pos, ok
}

// OpenOrders returns a copy of the open order ledger.
func (a *Accountant) OpenOrders() []LedgerEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]LedgerEntry, len(a.state.Ledger))
	copy(out, a.state.Ledger)
	return out
}

// Status returns a snapshot of the current risk state.
func (a *Accountant) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]Position, len(a.state.Positions))
	for k, v := range a.state.Positions {
		positions[k] = v
	}
	return Status{
		DailyLoss:    a.state.DailyLoss,
		WeeklyLoss:   a.state.WeeklyLoss,
		MonthlyLoss:  a.state.MonthlyLoss,
		Profit:       a.state.Profit,
		Positions:    positions,
		OpenExposure: a.openExposureLocked(""),
		OpenOrders:   len(a.state.Ledger),
	}
}

// Close persists the final state. The accountant must not be used
// afterwards.
func (a *Accountant) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.store.Save(a.state)
}

// openExposureLocked sums the ledger notionals, optionally filtered
// by symbol. Empty symbol sums everything.
func (a *Accountant) openExposureLocked(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range a.state.Ledger {
		if symbol == "" || e.Symbol == symbol {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// reject queues a risk event for the reporter. Callers hold a.mu;
// delivery happens in dispatchPending once the lock is released, so a
// slow reporter (the Telegram notifier is an HTTP call) cannot stall
// risk decisions on other symbols.
func (a *Accountant) reject(rule, symbol string, details map[string]string) {
	a.log.Warn("risk rule breached",
		zap.String("rule", rule),
		zap.String("symbol", symbol))
	if a.reporter != nil {
		a.pending = append(a.pending, Event{
			Rule:    rule,
			Symbol:  symbol,
			Details: details,
			At:      time.Now().UTC(),
		})
	}
}

func (a *Accountant) dispatchPending() {
	a.mu.Lock()
	events := a.pending
	a.pending = nil
	a.mu.Unlock()
	for _, ev := range events {
		a.reporter.ReportRisk(ev)
	}
}
