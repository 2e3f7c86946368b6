package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type marketMetrics struct {
	transitions *prometheus.CounterVec
	rpcRequests *prometheus.CounterVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics
)

// Market returns the lazily-initialised metrics registry tracking ledger
// transitions and RPC activity.
func Market() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "kaiwu",
				Subsystem: "market",
				Name:      "transitions_total",
				Help:      "Count of state machine transitions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "kaiwu",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(marketRegistry.transitions, marketRegistry.rpcRequests)
	})
	return marketRegistry
}

// RecordTransition increments the transition counter for the supplied
// operation name and outcome ("ok" or "error").
func (m *marketMetrics) RecordTransition(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

// RecordRPCRequest increments the RPC request counter.
func (m *marketMetrics) RecordRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}
