package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vkoshel/tradegate/internal/exchange"
	"github.com/vkoshel/tradegate/internal/journal"
	"github.com/vkoshel/tradegate/internal/monitoring"
	"github.com/vkoshel/tradegate/internal/notifications"
	"github.com/vkoshel/tradegate/internal/risk"
)

// RiskError is returned by Execute when the risk accountant declines
// a trade. Rule names the limit that fired.
type RiskError struct {
	Rule   string
	Symbol string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("trade declined for %s: %s", e.Symbol, e.Rule)
}

// Request describes one trade to execute. Amount is the base quantity,
// Price is the limit price (zero for market orders), StopLoss is the
// level used for per-position loss checks (zero disables them).
type Request struct {
	Symbol    string
	Side      exchange.Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	StopLoss  decimal.Decimal
	OrderType exchange.OrderType
}

// Service routes orders through the risk accountant before they reach
// the exchange. Per symbol, the check-place-register sequence runs
// under a lock so concurrent submissions cannot both pass a limit
// that only has room for one of them.
type Service struct {
	ex         exchange.Exchange
	acct       *risk.Accountant
	jrnl       *journal.Journal
	notifier   notifications.Notifier
	log        *zap.Logger
	quoteAsset string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithJournal records opened and closed trades in the given journal.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) { s.jrnl = j }
}

// WithNotifier sends trade and error alerts through the given notifier.
func WithNotifier(n notifications.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithQuoteAsset sets the balance asset used for risk checks.
// Defaults to USDT.
func WithQuoteAsset(asset string) Option {
	return func(s *Service) { s.quoteAsset = asset }
}

// New creates an execution service bound to one exchange and one
// risk accountant.
func New(ex exchange.Exchange, acct *risk.Accountant, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		ex:         ex,
		acct:       acct,
		notifier:   &notifications.Noop{},
		log:        log,
		quoteAsset: "USDT",
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

// Execute runs one trade through the full pipeline: fetch balance,
// ask the risk accountant, place the order, register the fill. A
// risk decline returns *RiskError and never touches the exchange. An
// exchange failure leaves the accountant untouched.
func (s *Service) Execute(ctx context.Context, req Request) (*exchange.OrderResult, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("execute: symbol is required")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("execute: amount must be positive")
	}

	l := s.symbolLock(req.Symbol)
	l.Lock()
	defer l.Unlock()

	price := req.Price
	if price.IsZero() {
		p, err := s.ex.GetPrice(ctx, req.Symbol)
		if err != nil {
			monitoring.RecordError("price")
			return nil, fmt.Errorf("execute %s: fetch price: %w", req.Symbol, err)
		}
		price = decimal.NewFromFloat(p)
		monitoring.UpdatePrice(req.Symbol, p)
	}
	notional := req.Amount.Mul(price)

	balances, err := s.ex.GetBalance(ctx)
	if err != nil {
		monitoring.RecordError("balance")
		return nil, fmt.Errorf("execute %s: fetch balance: %w", req.Symbol, err)
	}
	balance := decimal.NewFromFloat(balances[s.quoteAsset])

	ok, rule := s.acct.CanTrade(balance, notional, req.Symbol, req.StopLoss)
	if !ok {
		monitoring.RecordRiskDecline(rule)
		return nil, &RiskError{Rule: rule, Symbol: req.Symbol}
	}

	orderType := req.OrderType
	if orderType == "" {
		if req.Price.IsZero() {
			orderType = exchange.OrderTypeMarket
		} else {
			orderType = exchange.OrderTypeLimit
		}
	}

	amount, _ := req.Amount.Float64()
	order := exchange.Order{
		Symbol:      req.Symbol,
		Side:        req.Side,
		Amount:      amount,
		Type:        orderType,
		OrderLinkID: journal.NewID(),
	}
	if orderType != exchange.OrderTypeMarket {
		order.Price, _ = req.Price.Float64()
	}

	res, err := s.ex.PlaceOrder(ctx, order)
	if err != nil {
		monitoring.RecordError("order")
		s.log.Error("order placement failed",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Error(err))
		_ = s.notifier.SendAlert("error",
			fmt.Sprintf("Order failed for %s: %v", req.Symbol, err))
		return nil, fmt.Errorf("execute %s: place order: %w", req.Symbol, err)
	}

	if err := s.acct.RegisterTrade(risk.Trade{
		Symbol:     req.Symbol,
		Size:       req.Amount,
		EntryPrice: price,
		StopLoss:   req.StopLoss,
		OrderID:    res.OrderID,
		Side:       string(req.Side),
		OrderType:  string(orderType),
	}); err != nil {
		// The order is live on the exchange but the local state could
		// not be persisted. Surface loudly, reconcile will pick it up.
		s.log.Error("trade registered on exchange but not locally",
			zap.String("order_id", res.OrderID),
			zap.Error(err))
		_ = s.notifier.SendAlert("error",
			fmt.Sprintf("State mismatch: order %s placed but not registered", res.OrderID))
		return res, fmt.Errorf("execute %s: register trade: %w", req.Symbol, err)
	}

	if s.jrnl != nil {
		if _, err := s.jrnl.RecordOpen(res.OrderID, req.Symbol, string(req.Side),
			req.Amount.String(), price.String(), time.Now().UTC()); err != nil {
			s.log.Warn("journal write failed", zap.Error(err))
		}
	}

	monitoring.RecordTrade(req.Symbol, string(req.Side), amount)
	s.publishStatus()

	s.log.Info("trade executed",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("amount", req.Amount.String()),
		zap.String("price", price.String()),
		zap.String("order_id", res.OrderID))

	return res, nil
}

// ClosePosition unwinds the tracked position for a symbol. Open orders
// for the symbol are cancelled first (already-filled orders are left
// alone), then the accountant realizes the PnL. Returns (nil, nil)
// when no position is tracked.
func (s *Service) ClosePosition(ctx context.Context, symbol string, exitPrice decimal.Decimal, commission *decimal.Decimal) (*risk.ClosedTrade, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	if _, ok := s.acct.Position(symbol); !ok {
		s.log.Info("close requested for untracked symbol", zap.String("symbol", symbol))
		return nil, nil
	}

	for _, entry := range s.acct.OpenOrders() {
		if entry.Symbol != symbol {
			continue
		}
		res, err := s.ex.GetOrderStatus(ctx, entry.OrderID, symbol)
		if err == nil && res.Status.IsClosed() {
			continue
		}
		if err := s.ex.CancelOrder(ctx, entry.OrderID, symbol); err != nil {
			monitoring.RecordError("cancel")
			return nil, fmt.Errorf("close %s: cancel order %s: %w", symbol, entry.OrderID, err)
		}
	}

	if exitPrice.IsZero() {
		p, err := s.ex.GetPrice(ctx, symbol)
		if err != nil {
			monitoring.RecordError("price")
			return nil, fmt.Errorf("close %s: fetch price: %w", symbol, err)
		}
		exitPrice = decimal.NewFromFloat(p)
	}

	closed, err := s.acct.CloseTrade(symbol, exitPrice, commission)
	if err != nil {
		return nil, fmt.Errorf("close %s: %w", symbol, err)
	}
	if closed == nil {
		return nil, nil
	}

	if s.jrnl != nil {
		if err := s.jrnl.RecordClose(closed.OrderID, symbol, closed.ExitPrice.String(),
			closed.Commission.String(), closed.PnL.String(), closed.ClosedAt); err != nil {
			s.log.Warn("journal write failed", zap.Error(err))
		}
	}

	level := "success"
	if closed.PnL.IsNegative() {
		level = "warning"
	}
	_ = s.notifier.SendAlert(level,
		fmt.Sprintf("Closed %s: PnL %s (entry %s, exit %s)",
			symbol, closed.PnL.String(), closed.EntryPrice.String(), closed.ExitPrice.String()))

	s.publishStatus()

	s.log.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("pnl", closed.PnL.String()),
		zap.String("exit_price", closed.ExitPrice.String()))

	return closed, nil
}

// Status exposes the accountant snapshot for reporting surfaces.
func (s *Service) Status() risk.Status {
	return s.acct.Status()
}

func (s *Service) publishStatus() {
	st := s.acct.Status()
	daily, _ := st.DailyLoss.Float64()
	weekly, _ := st.WeeklyLoss.Float64()
	monthly, _ := st.MonthlyLoss.Float64()
	monitoring.UpdateLossWindows(daily, weekly, monthly)
	monitoring.UpdateOpenPositions(len(st.Positions))
}
