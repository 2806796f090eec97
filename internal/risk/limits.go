package risk

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// DefaultKey is the limit-set entry every symbol lookup falls back to.
// A limit set without it is invalid.
const DefaultKey = "default"

// Limits holds the risk limits applied to one symbol (or the default
// entry). Percentage fields are fractions of the current balance;
// weekly and monthly loss limits are absolute amounts in the base
// currency.
type Limits struct {
	MaxTradeSizePct    decimal.Decimal `json:"max_trade_size_pct"`
	MaxTradeSizeAbs    decimal.Decimal `json:"max_trade_size_abs"`
	MaxDailyLossPct    decimal.Decimal `json:"max_daily_loss_pct"`
	MaxDailyLossAbs    decimal.Decimal `json:"max_daily_loss_abs"`
	MaxWeeklyLoss      decimal.Decimal `json:"max_weekly_loss"`
	MaxMonthlyLoss     decimal.Decimal `json:"max_monthly_loss"`
	MaxOpenPositions   int             `json:"max_open_positions"`
	MaxLossPerPosition decimal.Decimal `json:"max_loss_per_position"`
	CommissionPct      decimal.Decimal `json:"commission_pct"`
}

// LimitSet maps symbols to their limits. The "default" entry is
// mandatory and backs every symbol without an explicit entry.
type LimitSet map[string]Limits

// DefaultLimits returns the limit set the original configuration
// ships with.
func DefaultLimits() LimitSet {
	return LimitSet{
		DefaultKey: {
			MaxTradeSizePct:    decimal.NewFromFloat(0.1),
			MaxTradeSizeAbs:    decimal.NewFromInt(10000),
			MaxDailyLossPct:    decimal.NewFromFloat(0.05),
			MaxDailyLossAbs:    decimal.NewFromInt(500),
			MaxWeeklyLoss:      decimal.NewFromInt(2000),
			MaxMonthlyLoss:     decimal.NewFromInt(4000),
			MaxOpenPositions:   5,
			MaxLossPerPosition: decimal.NewFromFloat(0.02),
			CommissionPct:      decimal.NewFromFloat(0.001),
		},
	}
}

// LoadLimits reads a limit set from a JSON file. A missing file is
// not an error; the defaults are returned so a fresh deployment can
// start without configuration.
func LoadLimits(path string) (LimitSet, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultLimits(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}

	var set LimitSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse limits file %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks structural invariants. Fatal at startup.
func (s LimitSet) Validate() error {
	if _, ok := s[DefaultKey]; !ok {
		return fmt.Errorf("limit set must contain a %q entry", DefaultKey)
	}
	one := decimal.NewFromInt(1)
	for symbol, l := range s {
		if l.MaxTradeSizePct.LessThanOrEqual(decimal.Zero) || l.MaxTradeSizePct.GreaterThan(one) {
			return fmt.Errorf("limits for %s: max_trade_size_pct must be in (0, 1]", symbol)
		}
		if l.MaxTradeSizeAbs.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("limits for %s: max_trade_size_abs must be positive", symbol)
		}
		if l.MaxOpenPositions <= 0 {
			return fmt.Errorf("limits for %s: max_open_positions must be positive", symbol)
		}
		if l.MaxLossPerPosition.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("limits for %s: max_loss_per_position must be positive", symbol)
		}
		if l.CommissionPct.IsNegative() {
			return fmt.Errorf("limits for %s: commission_pct must not be negative", symbol)
		}
	}
	return nil
}

// For returns the limits for a symbol, falling back to the default
// entry.
func (s LimitSet) For(symbol string) Limits {
	if l, ok := s[symbol]; ok {
		return l
	}
	return s[DefaultKey]
}

func (s LimitSet) clone() LimitSet {
	out := make(LimitSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
