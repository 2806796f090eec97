package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vkoshel/tradegate/internal/config"
	"github.com/vkoshel/tradegate/internal/exchange"
	"github.com/vkoshel/tradegate/internal/exchange/bybit"
	"github.com/vkoshel/tradegate/internal/executor"
	"github.com/vkoshel/tradegate/internal/journal"
	"github.com/vkoshel/tradegate/internal/logger"
	"github.com/vkoshel/tradegate/internal/monitoring"
	"github.com/vkoshel/tradegate/internal/notifications"
	"github.com/vkoshel/tradegate/internal/risk"
	"github.com/vkoshel/tradegate/internal/signal"
)

const candleLookback = 100

// TradeBot ties the signal generator, risk accountant, and execution
// service into one polling loop per symbol.
type TradeBot struct {
	cfg       *config.Config
	ex        exchange.Exchange
	generator *signal.Generator
	svc       *executor.Service
	acct      *risk.Accountant
	jrnl      *journal.Journal
	notifier  notifications.Notifier
	log       *zap.Logger
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	bot, err := buildBot(cfg, log)
	if err != nil {
		log.Fatal("failed to build bot", zap.Error(err))
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		log.Fatal("bot stopped with error", zap.Error(err))
	}
	log.Info("bot shut down cleanly")
}

func buildBot(cfg *config.Config, log *zap.Logger) (*TradeBot, error) {
	limits, err := risk.LoadLimits(cfg.Paths.RiskLimits)
	if err != nil {
		return nil, fmt.Errorf("load risk limits: %w", err)
	}

	store, err := risk.NewFileStore(cfg.Paths.State)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	var notifier notifications.Notifier = notifications.Noop{}
	if cfg.Notifications.TelegramToken != "" {
		notifier = notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	} else {
		log.Info("telegram notifications disabled (no token configured)")
	}

	acct, err := risk.NewAccountant(limits, store, notifications.RiskReporter(notifier), log)
	if err != nil {
		return nil, fmt.Errorf("init risk accountant: %w", err)
	}

	jrnl, err := journal.Open(cfg.Paths.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	ex := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.Secret,
		Category:  "spot",
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	}, log)

	rawThresholds, err := signal.LoadThresholds(cfg.Paths.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	generator, err := signal.NewGenerator(rawThresholds, log,
		signal.WithModels(
			signal.NewRSIModel(14),
			signal.NewMomentumModel(10, 0),
		))
	if err != nil {
		return nil, fmt.Errorf("init signal generator: %w", err)
	}

	svc := executor.New(ex, acct, log,
		executor.WithJournal(jrnl),
		executor.WithNotifier(notifier),
		executor.WithQuoteAsset(cfg.Trading.QuoteAsset))

	return &TradeBot{
		cfg:       cfg,
		ex:        ex,
		generator: generator,
		svc:       svc,
		acct:      acct,
		jrnl:      jrnl,
		notifier:  notifier,
		log:       log,
	}, nil
}

// Run authenticates, reconciles, and drives the per-symbol trading
// loops until the context is cancelled.
func (b *TradeBot) Run(ctx context.Context) error {
	defer b.shutdown()

	if err := b.ex.Authenticate(ctx); err != nil {
		return fmt.Errorf("exchange authentication: %w", err)
	}

	// Refuse to trade on top of a ledger the exchange disagrees with.
	if err := b.svc.Reconcile(ctx); err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}

	resetScheduler := risk.NewResetScheduler(b.acct, b.log)
	go resetScheduler.Run(ctx)

	go b.serveMetrics(ctx)

	_ = b.notifier.SendAlert("info", "Trade bot started")
	b.log.Info("bot started",
		zap.Strings("symbols", b.cfg.Trading.Symbols),
		zap.Duration("poll_interval", b.cfg.Trading.PollInterval),
		zap.Bool("testnet", b.cfg.Exchange.Testnet))

	var wg sync.WaitGroup
	for _, symbol := range b.cfg.Trading.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			b.tradingLoop(ctx, symbol)
		}(symbol)
	}
	wg.Wait()
	return nil
}

func (b *TradeBot) tradingLoop(ctx context.Context, symbol string) {
	ticker := time.NewTicker(b.cfg.Trading.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("trading loop stopped", zap.String("symbol", symbol))
			return
		case <-ticker.C:
			if err := b.tradingCycle(ctx, symbol); err != nil {
				b.log.Error("trading cycle failed",
					zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}
}

func (b *TradeBot) tradingCycle(ctx context.Context, symbol string) error {
	candles, err := b.ex.GetHistoricalData(ctx, symbol, "1m", nil, nil, candleLookback)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) > 0 {
		monitoring.UpdatePrice(symbol, candles[len(candles)-1].Close)
	}

	sig := b.generator.Generate(signal.MarketData{
		Symbol:      symbol,
		Timeframe:   "1m",
		GeneratedAt: time.Now().UTC(),
		Candles:     candles,
	})
	monitoring.UpdateSignalConfidence(symbol, sig.Confidence)

	switch sig.Action {
	case signal.ActionBuy:
		return b.handleBuy(ctx, symbol)
	case signal.ActionSell:
		return b.handleSell(ctx, symbol)
	default:
		return nil
	}
}

func (b *TradeBot) handleBuy(ctx context.Context, symbol string) error {
	res, err := b.svc.Execute(ctx, executor.Request{
		Symbol: symbol,
		Side:   exchange.SideBuy,
		Amount: decimal.NewFromFloat(b.cfg.Trading.TradeAmount),
	})
	if err != nil {
		var riskErr *executor.RiskError
		if errors.As(err, &riskErr) {
			b.log.Info("trade declined",
				zap.String("symbol", symbol), zap.String("rule", riskErr.Rule))
			return nil
		}
		return err
	}
	b.log.Info("buy order placed",
		zap.String("symbol", symbol), zap.String("order_id", res.OrderID))
	return nil
}

func (b *TradeBot) handleSell(ctx context.Context, symbol string) error {
	closed, err := b.svc.ClosePosition(ctx, symbol, decimal.Zero, nil)
	if err != nil {
		return err
	}
	if closed == nil {
		return nil
	}
	b.log.Info("position closed",
		zap.String("symbol", symbol), zap.String("pnl", closed.PnL.String()))
	return nil
}

func (b *TradeBot) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", b.cfg.Monitoring.PrometheusPort),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	b.log.Info("metrics server listening", zap.Int("port", b.cfg.Monitoring.PrometheusPort))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		b.log.Error("metrics server failed", zap.Error(err))
	}
}

func (b *TradeBot) shutdown() {
	if err := b.acct.Close(); err != nil {
		b.log.Error("failed to persist risk state", zap.Error(err))
	}
	if err := b.jrnl.Close(); err != nil {
		b.log.Error("failed to close journal", zap.Error(err))
	}
	if err := b.ex.Close(); err != nil {
		b.log.Error("failed to close exchange client", zap.Error(err))
	}
	_ = b.notifier.SendAlert("info", "Trade bot stopped")
}
