package signal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoshel/tradegate/internal/exchange"
)

type fixedModel struct {
	id    string
	score float64
	err   error
}

func (m *fixedModel) ID() string { return m.id }

func (m *fixedModel) Predict(data MarketData) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.score, nil
}

func scored(symbol string, score float64) MarketData {
	return MarketData{Symbol: symbol, Score: &score}
}

func newTestGenerator(t *testing.T, raw map[string]ThresholdConfig, opts ...Option) *Generator {
	t.Helper()
	g, err := NewGenerator(raw, nil, opts...)
	require.NoError(t, err)
	return g
}

func thresholdMap(entries map[string][2]float64) map[string]ThresholdConfig {
	out := make(map[string]ThresholdConfig, len(entries))
	for symbol, pair := range entries {
		buy, sell := pair[0], pair[1]
		out[symbol] = ThresholdConfig{Buy: &buy, Sell: &sell}
	}
	return out
}

// TestGenerate_InclusiveThresholds verifies scores exactly at a
// cutoff trigger the action.
func TestGenerate_InclusiveThresholds(t *testing.T) {
	g := newTestGenerator(t, thresholdMap(map[string][2]float64{
		"default": {0.7, 0.3},
	}))

	assert.Equal(t, ActionBuy, g.Generate(scored("BTCUSDT", 0.7)).Action)
	assert.Equal(t, ActionBuy, g.Generate(scored("BTCUSDT", 0.9)).Action)
	assert.Equal(t, ActionSell, g.Generate(scored("BTCUSDT", 0.3)).Action)
	assert.Equal(t, ActionSell, g.Generate(scored("BTCUSDT", 0.1)).Action)
	assert.Equal(t, ActionHold, g.Generate(scored("BTCUSDT", 0.5)).Action)
}

// TestGenerate_SymbolThresholdFallback verifies unknown symbols use
// the default entry and known symbols their own.
func TestGenerate_SymbolThresholdFallback(t *testing.T) {
	g := newTestGenerator(t, thresholdMap(map[string][2]float64{
		"default": {0.7, 0.3},
		"ETHUSDT": {0.6, 0.4},
	}))

	assert.Equal(t, ActionBuy, g.Generate(scored("ETHUSDT", 0.65)).Action)
	assert.Equal(t, ActionHold, g.Generate(scored("BTCUSDT", 0.65)).Action)
}

// TestNewGenerator_RequiresDefault verifies a thresholds map without
// the default entry is rejected, as is a partial entry.
func TestNewGenerator_RequiresDefault(t *testing.T) {
	_, err := NewGenerator(thresholdMap(map[string][2]float64{
		"BTCUSDT": {0.7, 0.3},
	}), nil)
	assert.Error(t, err)

	buy := 0.7
	_, err = NewGenerator(map[string]ThresholdConfig{
		"default": {Buy: &buy},
	}, nil)
	assert.Error(t, err)
}

// TestGenerate_NeutralWithoutSources verifies the 0.5 default when no
// models, strategy, or explicit score is present.
func TestGenerate_NeutralWithoutSources(t *testing.T) {
	g := newTestGenerator(t, nil)

	sig := g.Generate(MarketData{Symbol: "BTCUSDT"})
	assert.Equal(t, ActionHold, sig.Action)
	assert.Equal(t, 0.5, sig.Confidence)
}

// TestGenerate_EnsembleAveraging verifies the ensemble average drives
// the action and failing models are excluded.
func TestGenerate_EnsembleAveraging(t *testing.T) {
	g := newTestGenerator(t, nil, WithModels(
		&fixedModel{id: "a", score: 0.8},
		&fixedModel{id: "b", score: 0.9},
		&fixedModel{id: "c", err: errors.New("no data")},
	))

	sig := g.Generate(MarketData{Symbol: "BTCUSDT"})
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)
	assert.Equal(t, []string{"a", "b"}, sig.ParamsUsed["model_ids"])
}

// TestGenerate_EnsembleAllFail verifies an all-failing ensemble falls
// back to the neutral score and marks the signal.
func TestGenerate_EnsembleAllFail(t *testing.T) {
	g := newTestGenerator(t, nil, WithModels(
		&fixedModel{id: "a", err: errors.New("down")},
		&fixedModel{id: "b", err: errors.New("down")},
	))

	sig := g.Generate(MarketData{Symbol: "BTCUSDT"})
	assert.Equal(t, ActionHold, sig.Action)
	assert.Equal(t, 0.5, sig.Confidence)
	assert.Equal(t, true, sig.ParamsUsed["ensemble_empty"])
}

// TestGenerate_ModelsTakePriorityOverScore verifies the source
// ordering: ensemble beats an explicit score.
func TestGenerate_ModelsTakePriorityOverScore(t *testing.T) {
	g := newTestGenerator(t, nil, WithModels(&fixedModel{id: "a", score: 0.9}))

	sig := g.Generate(scored("BTCUSDT", 0.1))
	assert.Equal(t, ActionBuy, sig.Action)
	assert.Equal(t, 0.9, sig.Confidence)
}

// TestGenerate_StrategyFallback verifies the simple strategy is used
// when no models are configured, and its errors yield neutral.
func TestGenerate_StrategyFallback(t *testing.T) {
	g := newTestGenerator(t, nil,
		WithStrategy(func(data MarketData) (StrategyResult, error) {
			return StrategyResult{Score: 0.8}, nil
		}),
		WithStrategyID("my_strategy"))

	sig := g.Generate(MarketData{Symbol: "BTCUSDT"})
	assert.Equal(t, ActionBuy, sig.Action)
	assert.Equal(t, "my_strategy", sig.StrategyID)

	failing := newTestGenerator(t, nil,
		WithStrategy(func(data MarketData) (StrategyResult, error) {
			return StrategyResult{}, errors.New("boom")
		}))
	assert.Equal(t, ActionHold, failing.Generate(MarketData{Symbol: "BTCUSDT"}).Action)
}

// TestGenerateFromNews verifies the sentiment cutoffs, inclusive on
// both sides, and the stamped metadata.
func TestGenerateFromNews(t *testing.T) {
	g := newTestGenerator(t, nil)

	buy := g.GenerateFromNews("BTCUSDT", 0.2, map[string]any{"articles": 7})
	assert.Equal(t, ActionBuy, buy.Action)
	assert.Equal(t, "news_sentiment", buy.StrategyID)
	assert.Equal(t, 7, buy.ParamsUsed["articles"])
	assert.Equal(t, 0.2, buy.ParamsUsed["news_sentiment_score"])

	assert.Equal(t, ActionSell, g.GenerateFromNews("BTCUSDT", -0.2, nil).Action)
	assert.Equal(t, ActionHold, g.GenerateFromNews("BTCUSDT", 0.19, nil).Action)
	assert.Equal(t, ActionHold, g.GenerateFromNews("BTCUSDT", -0.19, nil).Action)

	// Confidence is the sentiment magnitude.
	assert.Equal(t, 0.2, g.GenerateFromNews("BTCUSDT", -0.2, nil).Confidence)
}

// TestGenerateFromNews_CustomThreshold verifies the configurable
// cutoff.
func TestGenerateFromNews_CustomThreshold(t *testing.T) {
	g := newTestGenerator(t, nil, WithNewsThreshold(0.5))

	assert.Equal(t, ActionHold, g.GenerateFromNews("BTCUSDT", 0.4, nil).Action)
	assert.Equal(t, ActionBuy, g.GenerateFromNews("BTCUSDT", 0.5, nil).Action)
}

// TestGenerator_StateTracking verifies the per-symbol audit trail is
// overwritten per signal and cleared by ResetState.
func TestGenerator_StateTracking(t *testing.T) {
	g := newTestGenerator(t, nil)

	g.Generate(scored("BTCUSDT", 0.9))
	g.Generate(scored("BTCUSDT", 0.1))

	st, ok := g.State("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, ActionSell, st.LastSignal.Action)
	assert.Equal(t, 0.1, st.LastScore)

	_, ok = g.State("ETHUSDT")
	assert.False(t, ok)

	g.ResetState()
	_, ok = g.State("BTCUSDT")
	assert.False(t, ok)
}

// TestGenerate_EmptySymbolUsesDefault verifies inputs without a
// symbol are tracked under the default key.
func TestGenerate_EmptySymbolUsesDefault(t *testing.T) {
	g := newTestGenerator(t, nil)

	sig := g.Generate(scored("", 0.9))
	assert.Equal(t, DefaultSymbol, sig.Symbol)

	_, ok := g.State(DefaultSymbol)
	assert.True(t, ok)
}

// TestGenerate_PreservesTimestamp verifies an input timestamp is
// carried through while a missing one is filled in.
func TestGenerate_PreservesTimestamp(t *testing.T) {
	g := newTestGenerator(t, nil)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	score := 0.5
	sig := g.Generate(MarketData{Symbol: "BTCUSDT", Score: &score, GeneratedAt: at})
	assert.Equal(t, at, sig.GeneratedAt)

	sig = g.Generate(MarketData{Symbol: "BTCUSDT", Score: &score})
	assert.False(t, sig.GeneratedAt.IsZero())
}

// TestRSIModel_Direction verifies falling prices push the score up
// (oversold, buy side) and rising prices pull it down.
func TestRSIModel_Direction(t *testing.T) {
	model := NewRSIModel(14)

	up := make([]exchange.Candle, 20)
	down := make([]exchange.Candle, 20)
	for i := range up {
		up[i] = exchange.Candle{Close: 100 + float64(i)}
		down[i] = exchange.Candle{Close: 100 - float64(i)}
	}

	rising, err := model.Predict(MarketData{Candles: up})
	require.NoError(t, err)
	falling, err := model.Predict(MarketData{Candles: down})
	require.NoError(t, err)

	assert.Less(t, rising, 0.5)
	assert.Greater(t, falling, 0.5)
}

// TestRSIModel_InsufficientData verifies short inputs yield an error,
// not a fabricated score.
func TestRSIModel_InsufficientData(t *testing.T) {
	model := NewRSIModel(14)
	_, err := model.Predict(MarketData{Candles: make([]exchange.Candle, 5)})
	assert.Error(t, err)
}

// TestMomentumModel verifies the score responds to the lookback
// return and clamps to [0, 1].
func TestMomentumModel(t *testing.T) {
	model := NewMomentumModel(10, 10)

	flat := make([]exchange.Candle, 15)
	rising := make([]exchange.Candle, 15)
	for i := range flat {
		flat[i] = exchange.Candle{Close: 100}
		rising[i] = exchange.Candle{Close: 100 * (1 + 0.05*float64(i))}
	}

	score, err := model.Predict(MarketData{Candles: flat})
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)

	score, err = model.Predict(MarketData{Candles: rising})
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	_, err = model.Predict(MarketData{Candles: flat[:5]})
	assert.Error(t, err)
}
