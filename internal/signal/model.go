package signal

// Model is the scoring capability the ensemble iterates over. Predict
// returns a scalar in [0, 1]; an error means "no prediction", a
// state distinct from predicting the neutral 0.5, and excludes the
// model from the ensemble average for that input.
type Model interface {
	Predict(data MarketData) (float64, error)
}

// ModelID is implemented by models that can identify themselves in a
// signal's audit metadata.
type ModelID interface {
	ID() string
}

// StrategyResult is the output of a simple strategy function.
type StrategyResult struct {
	Score   float64
	Details map[string]any
}

// StrategyFunc is a pluggable single-strategy scorer, used when no
// models are configured.
type StrategyFunc func(data MarketData) (StrategyResult, error)
