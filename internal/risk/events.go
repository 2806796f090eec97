package risk

import "time"

// Rule names carried by risk events. Each failing CanTrade check and
// each breached loss window reports exactly one of these.
const (
	RuleMaxOpenPositions    = "max_open_positions"
	RuleSumTradeSizePct     = "sum_trade_size_pct"
	RuleSumTradeSizeAbs     = "sum_trade_size_abs"
	RuleInsufficientBalance = "insufficient_balance"
	RuleMaxLossPerPosition  = "max_loss_per_position"
	RuleMaxDailyLoss        = "max_daily_loss"
	RuleMaxWeeklyLoss       = "max_weekly_loss"
	RuleMaxMonthlyLoss      = "max_monthly_loss"
	RuleZeroStopLoss        = "zero_stop_loss"
)

// Event describes a breached risk rule.
type Event struct {
	Rule    string            `json:"rule"`
	Symbol  string            `json:"symbol,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	At      time.Time         `json:"at"`
}

// Reporter receives risk events. Implementations must be safe for
// concurrent use; the accountant calls them under its lock.
type Reporter interface {
	ReportRisk(event Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(event Event)

func (f ReporterFunc) ReportRisk(event Event) { f(event) }
