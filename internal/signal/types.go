package signal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vkoshel/tradegate/internal/exchange"
)

// Action is a discrete trading recommendation.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "hold"
	}
}

// Signal is one trading recommendation with its audit metadata.
// Immutable once produced.
type Signal struct {
	Action      Action
	Confidence  float64
	Symbol      string
	GeneratedAt time.Time
	StrategyID  string
	ParamsUsed  map[string]any
}

// MarketData is the input to signal generation. Score carries an
// explicit score for inputs that arrive pre-scored; nil means the
// generator derives one from models or the strategy. Extra holds
// genuinely free-form fields.
type MarketData struct {
	Symbol      string
	Timeframe   string
	Score       *float64
	GeneratedAt time.Time
	Candles     []exchange.Candle
	Extra       map[string]any
}

// Thresholds are the inclusive action cutoffs for one symbol:
// score ≥ Buy means buy, score ≤ Sell means sell.
type Thresholds struct {
	Buy  float64
	Sell float64
}

// ThresholdConfig is the wire form of a thresholds entry. Pointer
// fields distinguish a missing key from an explicit zero.
type ThresholdConfig struct {
	Buy  *float64 `json:"buy"`
	Sell *float64 `json:"sell"`
}

// ParseThresholds validates a raw thresholds map. Every entry must
// carry both keys and a "default" entry must be present.
func ParseThresholds(raw map[string]ThresholdConfig) (map[string]Thresholds, error) {
	if _, ok := raw[DefaultSymbol]; !ok {
		return nil, fmt.Errorf("thresholds must contain a %q entry", DefaultSymbol)
	}
	out := make(map[string]Thresholds, len(raw))
	for symbol, cfg := range raw {
		if cfg.Buy == nil || cfg.Sell == nil {
			return nil, fmt.Errorf("thresholds for %s must have keys 'buy' and 'sell'", symbol)
		}
		out[symbol] = Thresholds{Buy: *cfg.Buy, Sell: *cfg.Sell}
	}
	return out, nil
}

// LoadThresholds reads a thresholds map from a JSON file. A missing
// file yields nil, which NewGenerator treats as defaults-only.
func LoadThresholds(path string) (map[string]ThresholdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read thresholds %s: %w", path, err)
	}
	var raw map[string]ThresholdConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	return raw, nil
}

// SymbolState is the per-symbol audit trail kept by the generator:
// the last produced signal, its raw score, and when it was written.
type SymbolState struct {
	LastSignal  Signal
	LastScore   float64
	LastUpdated time.Time
}
