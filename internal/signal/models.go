package signal

import (
	"errors"
	"math"
)

var errInsufficientData = errors.New("insufficient data for prediction")

// RSIModel scores an input by the inverse of its RSI: oversold
// markets score toward 1 (buy), overbought toward 0 (sell).
type RSIModel struct {
	period int
}

// NewRSIModel creates an RSI-backed model with the given period.
func NewRSIModel(period int) *RSIModel {
	return &RSIModel{period: period}
}

func (m *RSIModel) ID() string { return "rsi" }

func (m *RSIModel) Predict(data MarketData) (float64, error) {
	prices := closes(data)
	if len(prices) < m.period+1 {
		return 0, errInsufficientData
	}

	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}

	var avgGain, avgLoss float64
	for _, change := range changes[len(changes)-m.period:] {
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += math.Abs(change)
		}
	}
	avgGain /= float64(m.period)
	avgLoss /= float64(m.period)

	if avgLoss == 0 {
		// RSI 100, maximally overbought.
		return 0, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return 1 - rsi/100, nil
}

// MomentumModel scores the return over its lookback window, squashed
// into [0, 1] around the 0.5 neutral point.
type MomentumModel struct {
	lookback int
	gain     float64
}

// NewMomentumModel creates a momentum model. gain scales how fast the
// score saturates; 10 maps a ±5% move to roughly ±0.5.
func NewMomentumModel(lookback int, gain float64) *MomentumModel {
	if gain <= 0 {
		gain = 10
	}
	return &MomentumModel{lookback: lookback, gain: gain}
}

func (m *MomentumModel) ID() string { return "momentum" }

func (m *MomentumModel) Predict(data MarketData) (float64, error) {
	prices := closes(data)
	if len(prices) < m.lookback+1 || prices[len(prices)-1-m.lookback] == 0 {
		return 0, errInsufficientData
	}

	last := prices[len(prices)-1]
	base := prices[len(prices)-1-m.lookback]
	ret := (last - base) / base

	score := 0.5 + ret*m.gain
	return math.Max(0, math.Min(1, score)), nil
}

func closes(data MarketData) []float64 {
	prices := make([]float64, len(data.Candles))
	for i, c := range data.Candles {
		prices[i] = c.Close
	}
	return prices
}
