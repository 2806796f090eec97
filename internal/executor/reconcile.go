package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// Drift is one order whose exchange-side state disagrees with the
// local ledger.
type Drift struct {
	OrderID string
	Symbol  string
	Status  exchange.OrderStatus
	Reason  string
}

// ReconciliationError reports ledger entries that could not be
// confirmed against the exchange at startup.
type ReconciliationError struct {
	Drifts []Drift
}

func (e *ReconciliationError) Error() string {
	parts := make([]string, 0, len(e.Drifts))
	for _, d := range e.Drifts {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", d.Symbol, d.OrderID, d.Reason))
	}
	return fmt.Sprintf("reconciliation found %d drifted orders: %s",
		len(e.Drifts), strings.Join(parts, "; "))
}

// Reconcile cross-checks every ledger entry against the exchange.
// Run it once at startup, before accepting new trades. Filled and
// still-open orders pass; cancelled, rejected, or unknown orders are
// reported as drift so an operator can correct the state file.
func (s *Service) Reconcile(ctx context.Context) error {
	var drifts []Drift
	for _, entry := range s.acct.OpenOrders() {
		res, err := s.ex.GetOrderStatus(ctx, entry.OrderID, entry.Symbol)
		if err != nil {
			if exchange.IsBusinessError(err) {
				drifts = append(drifts, Drift{
					OrderID: entry.OrderID,
					Symbol:  entry.Symbol,
					Reason:  "order unknown to exchange",
				})
				continue
			}
			return fmt.Errorf("reconcile %s/%s: %w", entry.Symbol, entry.OrderID, err)
		}
		switch res.Status {
		case exchange.OrderStatusCancelled, exchange.OrderStatusRejected:
			drifts = append(drifts, Drift{
				OrderID: entry.OrderID,
				Symbol:  entry.Symbol,
				Status:  res.Status,
				Reason:  fmt.Sprintf("ledger open but exchange reports %s", res.Status),
			})
		default:
			// Filled or still working, the ledger entry is sound.
		}
	}

	if len(drifts) == 0 {
		s.log.Info("reconciliation clean",
			zap.Int("orders_checked", len(s.acct.OpenOrders())))
		return nil
	}

	for _, d := range drifts {
		s.log.Warn("order drift detected",
			zap.String("symbol", d.Symbol),
			zap.String("order_id", d.OrderID),
			zap.String("reason", d.Reason))
	}
	err := &ReconciliationError{Drifts: drifts}
	_ = s.notifier.SendAlert("error", err.Error())
	return err
}
