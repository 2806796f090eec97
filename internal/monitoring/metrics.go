package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "side"},
	)

	tradeAmount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_trade_amount",
			Help:    "Distribution of trade amounts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// Risk metrics
	riskDeclinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_risk_declines_total",
			Help: "Total number of trades declined by a risk rule",
		},
		[]string{"rule"},
	)

	lossWindow = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_loss_window",
			Help: "Accrued loss per rolling window",
		},
		[]string{"window"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_open_positions",
			Help: "Number of currently open positions",
		},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	// Signal metrics
	signalConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_signal_confidence",
			Help: "Confidence of the latest signal per symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeAmount)
	prometheus.MustRegister(riskDeclinesTotal)
	prometheus.MustRegister(lossWindow)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(signalConfidence)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records an executed trade
func RecordTrade(symbol, side string, amount float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeAmount.WithLabelValues(symbol).Observe(amount)
}

// RecordRiskDecline records a trade declined by the given risk rule
func RecordRiskDecline(rule string) {
	riskDeclinesTotal.WithLabelValues(rule).Inc()
}

// UpdateLossWindows updates the rolling loss gauges
func UpdateLossWindows(daily, weekly, monthly float64) {
	lossWindow.WithLabelValues("daily").Set(daily)
	lossWindow.WithLabelValues("weekly").Set(weekly)
	lossWindow.WithLabelValues("monthly").Set(monthly)
}

// UpdateOpenPositions updates the open position gauge
func UpdateOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateSignalConfidence updates the per-symbol signal confidence metric
func UpdateSignalConfidence(symbol string, confidence float64) {
	signalConfidence.WithLabelValues(symbol).Set(confidence)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
