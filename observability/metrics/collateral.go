package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CollateralMetrics struct {
	operations       *prometheus.CounterVec
	liquidations     prometheus.Counter
	debtCovered      prometheus.Counter
	healthFactorLow  *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

var (
	collateralOnce     sync.Once
	collateralRegistry *CollateralMetrics
)

func Collateral() *CollateralMetrics {
	collateralOnce.Do(func() {
		collateralRegistry = &CollateralMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "collateral_operations_total",
				Help: "Count of collateral engine operations by method and outcome.",
			}, []string{"method", "outcome"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "collateral_liquidations_total",
				Help: "Count of successful liquidations.",
			}),
			debtCovered: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "collateral_liquidation_debt_covered_total",
				Help: "Total debt units repaid through liquidations.",
			}),
			healthFactorLow: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "collateral_solvency_rejections_total",
				Help: "Count of operations rejected for breaking the solvency floor, by method.",
			}, []string{"method"}),
			requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "collateral_rpc_duration_seconds",
				Help:    "Latency of collateral RPC handlers.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			collateralRegistry.operations,
			collateralRegistry.liquidations,
			collateralRegistry.debtCovered,
			collateralRegistry.healthFactorLow,
			collateralRegistry.requestDurations,
		)
	})
	return collateralRegistry
}

func (m *CollateralMetrics) ObserveOperation(method, outcome string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.operations.WithLabelValues(method, outcome).Inc()
}

func (m *CollateralMetrics) ObserveLiquidation(debtCovered float64) {
	if m == nil {
		return
	}
	m.liquidations.Inc()
	if debtCovered > 0 {
		m.debtCovered.Add(debtCovered)
	}
}

func (m *CollateralMetrics) IncSolvencyRejection(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.healthFactorLow.WithLabelValues(method).Inc()
}

func (m *CollateralMetrics) ObserveDuration(method string, seconds float64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.requestDurations.WithLabelValues(method).Observe(seconds)
}
