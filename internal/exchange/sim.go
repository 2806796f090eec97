package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sim is an in-memory exchange used by the demo mode and by tests.
// Prices and balances are set by the caller; orders fill immediately
// at the current price. FailNext schedules errors for upcoming calls
// so failure paths can be exercised deterministically.
type Sim struct {
	mu       sync.Mutex
	prices   map[string]float64
	balances map[string]float64
	orders   map[string]*OrderResult
	nextID   int
	failures []error
	candles  map[string][]Candle

	// Calls counts invocations per operation name.
	Calls map[string]int
}

// NewSim creates a simulated exchange with the given free balances.
func NewSim(balances map[string]float64) *Sim {
	b := make(map[string]float64, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &Sim{
		prices:   make(map[string]float64),
		balances: b,
		orders:   make(map[string]*OrderResult),
		candles:  make(map[string][]Candle),
		Calls:    make(map[string]int),
	}
}

// SetPrice sets the current price for a symbol.
func (s *Sim) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetCandles seeds historical data for a symbol.
func (s *Sim) SetCandles(symbol string, candles []Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = candles
}

// FailNext queues errors returned, in order, by the next calls that
// reach the venue. Used to script timeouts and rejections.
func (s *Sim) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Sim) takeFailure() error {
	if len(s.failures) == 0 {
		return nil
	}
	err := s.failures[0]
	s.failures = s.failures[1:]
	return err
}

func (s *Sim) GetName() string { return "sim" }

func (s *Sim) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["authenticate"]++
	return s.takeFailure()
}

func (s *Sim) GetPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["get_price"]++
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return 0, NewError(KindBusiness, "get_price", fmt.Sprintf("unknown symbol %s", symbol))
	}
	return price, nil
}

func (s *Sim) GetBalance(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["get_balance"]++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out, nil
}

func (s *Sim) PlaceOrder(ctx context.Context, order Order) (*OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["place_order"]++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	if order.Amount <= 0 {
		return nil, NewError(KindValidation, "place_order", "amount must be positive")
	}

	price := order.Price
	if order.Type == OrderTypeMarket {
		p, ok := s.prices[order.Symbol]
		if !ok {
			return nil, NewError(KindBusiness, "place_order", fmt.Sprintf("unknown symbol %s", order.Symbol))
		}
		price = p
	}

	s.nextID++
	now := time.Now().UTC()
	res := &OrderResult{
		OrderID: fmt.Sprintf("sim-%d", s.nextID),
		Symbol:  order.Symbol,
		Side:    order.Side,
		Amount:  order.Amount,
		Price:   price,
		Status:  OrderStatusFilled,
		Created: now,
		Updated: now,
	}
	s.orders[res.OrderID] = res
	return res, nil
}

func (s *Sim) GetOrderStatus(ctx context.Context, orderID, symbol string) (*OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["get_order_status"]++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	res, ok := s.orders[orderID]
	if !ok {
		return nil, NewError(KindBusiness, "get_order_status", fmt.Sprintf("order %s not found", orderID))
	}
	cp := *res
	return &cp, nil
}

func (s *Sim) CancelOrder(ctx context.Context, orderID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["cancel_order"]++
	if err := s.takeFailure(); err != nil {
		// Already-closed rejections count as success for cancels.
		if IsAlreadyClosed(err) {
			return nil
		}
		return err
	}
	res, ok := s.orders[orderID]
	if !ok {
		return NewError(KindBusiness, "cancel_order", fmt.Sprintf("order %s not found", orderID))
	}
	if res.Status.IsClosed() {
		return nil
	}
	res.Status = OrderStatusCancelled
	res.Updated = time.Now().UTC()
	return nil
}

func (s *Sim) GetHistoricalData(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["get_historical_data"]++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	candles := s.candles[symbol]
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (s *Sim) Close() error { return nil }
