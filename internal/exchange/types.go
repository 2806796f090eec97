package exchange

import "time"

// Side represents the side of an order.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "Market"
	OrderTypeLimit     OrderType = "Limit"
	OrderTypeStopLimit OrderType = "StopLimit"
)

// OrderStatus represents the lifecycle state of an order as reported
// by the exchange.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// IsClosed reports whether the order can no longer change on the
// exchange side.
func (s OrderStatus) IsClosed() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order is an order request as constructed by the execution layer.
// Price is ignored for market orders. Extra carries venue-specific
// parameters (e.g. stop price for stop-limit orders).
type Order struct {
	Symbol      string
	Side        Side
	Amount      float64
	Price       float64
	Type        OrderType
	OrderLinkID string
	Extra       map[string]string
}

// OrderResult is the exchange's view of a placed or queried order.
type OrderResult struct {
	OrderID  string
	Symbol   string
	Side     Side
	Amount   float64
	Price    float64
	Status   OrderStatus
	Created  time.Time
	Updated  time.Time
}

// Candle is a single OHLCV data point.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}
