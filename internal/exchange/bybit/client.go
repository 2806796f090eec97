package bybit

import (
	"context"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// Client implements exchange.Exchange against the Bybit v5 API.
// Every network call goes through the configured retry policy.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	retry      exchange.RetryPolicy
	log        *zap.Logger
	testnet    bool
	demo       bool
}

// Config holds the adapter configuration.
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "spot", "linear", "inverse"
	Testnet   bool
	Demo      bool // demo trading environment (paper)
	Retry     *exchange.RetryPolicy
}

// NewClient creates a Bybit adapter.
func NewClient(cfg Config, log *zap.Logger) *Client {
	var baseURL string
	if cfg.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		cfg.APIKey,
		cfg.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := cfg.Category
	if category == "" {
		category = "spot"
	}
	retry := exchange.DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: httpClient,
		category:   category,
		retry:      retry,
		log:        log.Named("bybit"),
		testnet:    cfg.Testnet,
		demo:       cfg.Demo,
	}
}

func (c *Client) GetName() string { return "bybit" }

// Environment returns a string describing the trading environment.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// call runs fn under the retry policy with a bounded per-call budget.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return c.retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		err := fn(callCtx)
		if err != nil {
			c.log.Warn("api call failed",
				zap.String("op", op),
				zap.Error(err))
		}
		return err
	})
}

func (c *Client) Close() error { return nil }
