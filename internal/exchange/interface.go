package exchange

import (
	"context"
	"time"
)

// Exchange is the adapter contract the execution layer depends on.
// Implementations wrap each network call with their retry policy;
// transient failures are retried, authentication and business
// failures are not.
type Exchange interface {
	GetName() string

	// Authenticate validates credentials with the venue. An auth
	// failure is fatal for the adapter instance.
	Authenticate(ctx context.Context) error

	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetBalance returns free balances per currency.
	GetBalance(ctx context.Context) (map[string]float64, error)

	PlaceOrder(ctx context.Context, order Order) (*OrderResult, error)

	GetOrderStatus(ctx context.Context, orderID, symbol string) (*OrderResult, error)

	// CancelOrder cancels an open order. Cancelling an order that is
	// already closed is treated as success.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	GetHistoricalData(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]Candle, error)

	Close() error
}
