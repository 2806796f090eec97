package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime knob of the bot. Values come from the
// environment with sensible defaults; a .env file loaded by the entry
// point feeds the same variables during local runs.
type Config struct {
	Environment string
	LogLevel    string

	Exchange struct {
		Name    string
		APIKey  string
		Secret  string
		Testnet bool
		Demo    bool
	}

	Trading struct {
		Symbols      []string
		QuoteAsset   string
		PollInterval time.Duration
		TradeAmount  float64
	}

	Paths struct {
		State      string
		Journal    string
		RiskLimits string
		Thresholds string
	}

	Monitoring struct {
		PrometheusPort int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}
}

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Exchange.Name = getEnv("EXCHANGE_NAME", "bybit")
	cfg.Exchange.APIKey = getEnv("EXCHANGE_API_KEY", "")
	cfg.Exchange.Secret = getEnv("EXCHANGE_SECRET", "")
	cfg.Exchange.Testnet = getEnvBool("EXCHANGE_TESTNET", true)
	cfg.Exchange.Demo = getEnvBool("EXCHANGE_DEMO", false)

	cfg.Trading.Symbols = getEnvList("TRADING_SYMBOLS", []string{"BTCUSDT"})
	cfg.Trading.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")
	cfg.Trading.PollInterval = getEnvDuration("POLL_INTERVAL", time.Minute)
	cfg.Trading.TradeAmount = getEnvFloat("TRADE_AMOUNT", 0.001)

	cfg.Paths.State = getEnv("STATE_FILE", "data/risk_state.json")
	cfg.Paths.Journal = getEnv("JOURNAL_FILE", "data/journal.db")
	cfg.Paths.RiskLimits = getEnv("RISK_LIMITS_FILE", "risk_config.json")
	cfg.Paths.Thresholds = getEnv("THRESHOLDS_FILE", "thresholds.json")

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	return cfg
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	if c.Exchange.APIKey == "" || c.Exchange.Secret == "" {
		return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_SECRET are required")
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("TRADING_SYMBOLS must name at least one symbol")
	}
	if c.Trading.TradeAmount <= 0 {
		return fmt.Errorf("TRADE_AMOUNT must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
