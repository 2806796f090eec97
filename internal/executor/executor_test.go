package executor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vkoshel/tradegate/internal/exchange"
	"github.com/vkoshel/tradegate/internal/risk"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T, limits risk.LimitSet, balances map[string]float64) (*Service, *exchange.Sim, *risk.Accountant) {
	t.Helper()
	store, err := risk.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	acct, err := risk.NewAccountant(limits, store, nil, zap.NewNop())
	require.NoError(t, err)

	sim := exchange.NewSim(balances)
	return New(sim, acct, zap.NewNop()), sim, acct
}

// TestExecute_Success verifies the full pipeline: price, balance,
// risk check, order, registration.
func TestExecute_Success(t *testing.T) {
	svc, sim, acct := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	res, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, exchange.OrderStatusFilled, res.Status)

	pos, ok := acct.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "5", pos.Size.String())
	assert.Equal(t, "100", pos.EntryPrice.String())
	assert.Equal(t, res.OrderID, pos.OrderID)
	assert.Len(t, acct.OpenOrders(), 1)
}

// TestExecute_RiskDecline verifies a declined trade returns RiskError
// and never reaches the exchange.
func TestExecute_RiskDecline(t *testing.T) {
	limits := risk.DefaultLimits()
	l := limits[risk.DefaultKey]
	l.MaxTradeSizePct = dec("1")
	l.MaxTradeSizeAbs = dec("100")
	limits[risk.DefaultKey] = l
	svc, sim, acct := newTestService(t, limits, map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"), // notional 500, over the 100 cap
	})

	var riskErr *RiskError
	require.True(t, errors.As(err, &riskErr))
	assert.Equal(t, risk.RuleSumTradeSizeAbs, riskErr.Rule)
	assert.Zero(t, sim.Calls["place_order"])
	assert.Empty(t, acct.OpenOrders())
}

// TestExecute_ExchangeFailure verifies a failed placement leaves the
// accountant untouched.
func TestExecute_ExchangeFailure(t *testing.T) {
	svc, sim, acct := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	// First queued slot covers the balance call, second fails the
	// order placement.
	sim.FailNext(nil, exchange.NewError(exchange.KindNetwork, "place_order", "timeout"))

	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"),
		Price:  dec("100"),
	})
	require.Error(t, err)
	assert.True(t, exchange.IsRetryable(err))

	_, ok := acct.Position("BTCUSDT")
	assert.False(t, ok)
	assert.Empty(t, acct.OpenOrders())
}

// TestExecute_Validation rejects empty symbols and non-positive
// amounts before any venue call.
func TestExecute_Validation(t *testing.T) {
	svc, sim, _ := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})

	_, err := svc.Execute(context.Background(), Request{Side: exchange.SideBuy, Amount: dec("1")})
	assert.Error(t, err)

	_, err = svc.Execute(context.Background(), Request{Symbol: "BTCUSDT", Amount: dec("0")})
	assert.Error(t, err)

	assert.Zero(t, sim.Calls["place_order"])
}

// TestClosePosition verifies the close flow realizes pnl and clears
// the tracked state. Filled orders are not cancelled.
func TestClosePosition(t *testing.T) {
	svc, sim, acct := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"),
	})
	require.NoError(t, err)

	sim.SetPrice("BTCUSDT", 90)
	closed, err := svc.ClosePosition(context.Background(), "BTCUSDT", decimal.Zero, nil)
	require.NoError(t, err)
	require.NotNil(t, closed)

	assert.True(t, closed.PnL.IsNegative())
	assert.Equal(t, "90", closed.ExitPrice.String())
	assert.Zero(t, sim.Calls["cancel_order"])

	_, ok := acct.Position("BTCUSDT")
	assert.False(t, ok)
	assert.Empty(t, acct.OpenOrders())
	assert.True(t, acct.Status().DailyLoss.IsNegative())
}

// TestClosePosition_Untracked verifies closing an unknown symbol is a
// no-op, not an error.
func TestClosePosition_Untracked(t *testing.T) {
	svc, _, _ := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})

	closed, err := svc.ClosePosition(context.Background(), "DOGEUSDT", dec("1"), nil)
	assert.NoError(t, err)
	assert.Nil(t, closed)
}

// TestClosePosition_ExplicitExitAndCommission verifies caller-supplied
// exit price and commission are honored.
func TestClosePosition_ExplicitExitAndCommission(t *testing.T) {
	svc, sim, _ := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("2"),
	})
	require.NoError(t, err)

	fee := dec("3")
	closed, err := svc.ClosePosition(context.Background(), "BTCUSDT", dec("110"), &fee)
	require.NoError(t, err)
	// (110 - 100) * 2 - 3
	assert.Equal(t, "17", closed.PnL.String())
	assert.Equal(t, "3", closed.Commission.String())
}

// TestReconcile_Clean verifies a ledger fully backed by the exchange
// passes.
func TestReconcile_Clean(t *testing.T) {
	svc, sim, _ := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("1"),
	})
	require.NoError(t, err)

	assert.NoError(t, svc.Reconcile(context.Background()))
}

// TestReconcile_UnknownOrder verifies a ledger entry the exchange has
// never seen is reported as drift.
func TestReconcile_UnknownOrder(t *testing.T) {
	svc, _, acct := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})

	require.NoError(t, acct.RegisterTrade(risk.Trade{
		Symbol:     "BTCUSDT",
		Size:       dec("1"),
		EntryPrice: dec("100"),
		OrderID:    "ghost-order",
	}))

	err := svc.Reconcile(context.Background())
	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	require.Len(t, recErr.Drifts, 1)
	assert.Equal(t, "ghost-order", recErr.Drifts[0].OrderID)
}

// TestReconcile_TransientFailure verifies network errors during
// reconciliation surface as errors, not drift.
func TestReconcile_TransientFailure(t *testing.T) {
	svc, sim, acct := newTestService(t, risk.DefaultLimits(), map[string]float64{"USDT": 10000})

	require.NoError(t, acct.RegisterTrade(risk.Trade{
		Symbol: "BTCUSDT", Size: dec("1"), EntryPrice: dec("100"), OrderID: "o1",
	}))
	sim.FailNext(exchange.NewError(exchange.KindNetwork, "get_order_status", "timeout"))

	err := svc.Reconcile(context.Background())
	require.Error(t, err)
	var recErr *ReconciliationError
	assert.False(t, errors.As(err, &recErr))
}

// TestExecute_ExposureCapAtMarketPrice verifies the absolute exposure
// cap counts registered notional, so a second trade at a price far
// from one is declined once the combined notional exceeds the cap.
func TestExecute_ExposureCapAtMarketPrice(t *testing.T) {
	limits := risk.DefaultLimits()
	l := limits[risk.DefaultKey]
	l.MaxTradeSizePct = dec("1")
	l.MaxTradeSizeAbs = dec("600")
	limits[risk.DefaultKey] = l
	svc, sim, acct := newTestService(t, limits, map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 100)

	// 5 units at 100 put a 500 notional on the book.
	_, err := svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "500", acct.Status().OpenExposure.String())

	// Another 500 notional would carry 1000 against the 600 cap.
	_, err = svc.Execute(context.Background(), Request{
		Symbol: "BTCUSDT",
		Side:   exchange.SideBuy,
		Amount: dec("5"),
	})
	var riskErr *RiskError
	require.True(t, errors.As(err, &riskErr))
	assert.Equal(t, risk.RuleSumTradeSizeAbs, riskErr.Rule)
	assert.Equal(t, 1, sim.Calls["place_order"])
}

// TestExecute_SerializesPerSymbol verifies two concurrent submissions
// against a limit with room for one produce exactly one fill.
func TestExecute_SerializesPerSymbol(t *testing.T) {
	limits := risk.DefaultLimits()
	l := limits[risk.DefaultKey]
	l.MaxTradeSizePct = dec("1")
	l.MaxTradeSizeAbs = dec("100")
	limits[risk.DefaultKey] = l
	svc, sim, acct := newTestService(t, limits, map[string]float64{"USDT": 10000})
	sim.SetPrice("BTCUSDT", 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Execute(context.Background(), Request{
				Symbol: "BTCUSDT",
				Side:   exchange.SideBuy,
				Amount: dec("60"), // notional 60; two together exceed the 100 cap
			})
		}(i)
	}
	wg.Wait()

	var fills, declines int
	for _, err := range results {
		var riskErr *RiskError
		switch {
		case err == nil:
			fills++
		case errors.As(err, &riskErr):
			declines++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, fills)
	assert.Equal(t, 1, declines)
	assert.Equal(t, 1, sim.Calls["place_order"])
	assert.Len(t, acct.OpenOrders(), 1)
}
