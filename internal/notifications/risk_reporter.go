package notifications

import (
	"fmt"

	"github.com/vkoshel/tradegate/internal/risk"
)

// RiskReporter forwards risk events to a notifier as warning alerts.
func RiskReporter(n Notifier) risk.Reporter {
	return risk.ReporterFunc(func(ev risk.Event) {
		msg := fmt.Sprintf("Trade declined for %s: %s", ev.Symbol, ev.Rule)
		for k, v := range ev.Details {
			msg += fmt.Sprintf("\n%s: %s", k, v)
		}
		// Best effort, a failed alert must not block trading.
		_ = n.SendAlert("warning", msg)
	})
}
