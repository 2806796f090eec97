package signal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSymbol is the key used for threshold fallback and for inputs
// that do not name a symbol.
const DefaultSymbol = "default"

// DefaultNewsThreshold is the sentiment magnitude at which news-based
// signals flip from hold to buy/sell.
const DefaultNewsThreshold = 0.2

// Generator turns model ensemble output, simple-strategy output or
// news sentiment into buy/sell/hold signals. Every generated signal
// overwrites the per-symbol state. It is an audit trail, not a cache.
type Generator struct {
	models        []Model
	strategy      StrategyFunc
	thresholds    map[string]Thresholds
	strategyID    string
	newsThreshold float64
	log           *zap.Logger

	mu    sync.Mutex
	state map[string]SymbolState
}

// Option configures a Generator.
type Option func(*Generator)

// WithModels sets the scoring ensemble.
func WithModels(models ...Model) Option {
	return func(g *Generator) { g.models = models }
}

// WithStrategy sets the simple-strategy scorer, used when no models
// are configured.
func WithStrategy(fn StrategyFunc) Option {
	return func(g *Generator) { g.strategy = fn }
}

// WithStrategyID overrides the strategy id stamped on signals.
func WithStrategyID(id string) Option {
	return func(g *Generator) { g.strategyID = id }
}

// WithNewsThreshold sets the positive sentiment cutoff; the sell
// cutoff is its negative mirror.
func WithNewsThreshold(threshold float64) Option {
	return func(g *Generator) { g.newsThreshold = threshold }
}

// NewGenerator validates the thresholds and builds a generator.
// thresholds must contain a "default" entry; each entry must carry
// both cutoffs.
func NewGenerator(raw map[string]ThresholdConfig, log *zap.Logger, opts ...Option) (*Generator, error) {
	if raw == nil {
		buy, sell := 0.7, 0.3
		raw = map[string]ThresholdConfig{
			DefaultSymbol: {Buy: &buy, Sell: &sell},
		}
	}
	thresholds, err := ParseThresholds(raw)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	g := &Generator{
		thresholds:    thresholds,
		strategyID:    "default_strategy",
		newsThreshold: DefaultNewsThreshold,
		log:           log.Named("signal"),
		state:         make(map[string]SymbolState),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate produces a signal for one market-data input. Score source,
// in priority order: the model ensemble, the simple strategy, the
// input's explicit score, the 0.5 neutral default. Thresholds are
// inclusive on both sides.
func (g *Generator) Generate(data MarketData) Signal {
	symbol := data.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}

	thresholds := g.thresholdsFor(symbol)
	paramsUsed := map[string]any{
		"thresholds": thresholds,
	}

	var score float64
	switch {
	case len(g.models) > 0:
		score = g.ensembleScore(data, paramsUsed)
	case g.strategy != nil:
		score = g.strategyScore(data, paramsUsed)
	case data.Score != nil:
		score = *data.Score
	default:
		score = 0.5
	}

	g.log.Debug("score computed",
		zap.String("symbol", symbol),
		zap.Float64("score", score))

	action := ActionHold
	if score >= thresholds.Buy {
		action = ActionBuy
	} else if score <= thresholds.Sell {
		action = ActionSell
	}

	generatedAt := data.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	sig := Signal{
		Action:      action,
		Confidence:  score,
		Symbol:      symbol,
		GeneratedAt: generatedAt,
		StrategyID:  g.strategyID,
		ParamsUsed:  paramsUsed,
	}
	g.record(symbol, sig, score)
	return sig
}

// GenerateFromNews produces a signal from an aggregated per-symbol
// sentiment in [-1, 1]: buy at or above the news threshold, sell at
// or below its negative mirror, hold in between.
func (g *Generator) GenerateFromNews(symbol string, sentiment float64, meta map[string]any) Signal {
	if symbol == "" {
		symbol = DefaultSymbol
	}

	paramsUsed := map[string]any{
		"news_sentiment_score": sentiment,
		"news_threshold":       g.newsThreshold,
	}
	for k, v := range meta {
		paramsUsed[k] = v
	}

	action := ActionHold
	if sentiment >= g.newsThreshold {
		action = ActionBuy
	} else if sentiment <= -g.newsThreshold {
		action = ActionSell
	}

	g.log.Info("news-based signal",
		zap.String("symbol", symbol),
		zap.String("action", action.String()),
		zap.Float64("sentiment", sentiment))

	sig := Signal{
		Action:      action,
		Confidence:  abs(sentiment),
		Symbol:      symbol,
		GeneratedAt: time.Now().UTC(),
		StrategyID:  "news_sentiment",
		ParamsUsed:  paramsUsed,
	}
	g.record(symbol, sig, sentiment)
	return sig
}

// ensembleScore averages the model predictions. A failing model is
// logged and excluded; if every model fails the score defaults to the
// 0.5 neutral point.
func (g *Generator) ensembleScore(data MarketData, paramsUsed map[string]any) float64 {
	var sum float64
	var n int
	ids := make([]string, 0, len(g.models))

	for _, model := range g.models {
		id := "unknown"
		if named, ok := model.(ModelID); ok {
			id = named.ID()
		}
		score, err := model.Predict(data)
		if err != nil {
			g.log.Warn("model prediction failed",
				zap.String("model", id),
				zap.Error(err))
			continue
		}
		sum += score
		n++
		ids = append(ids, id)
	}

	paramsUsed["model_ids"] = ids
	if n == 0 {
		paramsUsed["ensemble_empty"] = true
		return 0.5
	}
	return sum / float64(n)
}

func (g *Generator) strategyScore(data MarketData, paramsUsed map[string]any) float64 {
	result, err := g.strategy(data)
	if err != nil {
		g.log.Warn("simple strategy failed", zap.Error(err))
		return 0.5
	}
	paramsUsed["simple_strategy_result"] = result
	return result.Score
}

func (g *Generator) thresholdsFor(symbol string) Thresholds {
	if t, ok := g.thresholds[symbol]; ok {
		return t
	}
	return g.thresholds[DefaultSymbol]
}

func (g *Generator) record(symbol string, sig Signal, score float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state[symbol] = SymbolState{
		LastSignal:  sig,
		LastScore:   score,
		LastUpdated: time.Now().UTC(),
	}
}

// State returns the audit state for symbol.
func (g *Generator) State(symbol string) (SymbolState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.state[symbol]
	return st, ok
}

// ResetState clears all per-symbol state.
func (g *Generator) ResetState() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = make(map[string]SymbolState)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
