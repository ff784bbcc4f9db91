package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/sweeper/internal/marketdata"
)

// RegisterGate exposes the fetch gate counters as Prometheus collectors
func RegisterGate(reg prometheus.Registerer, gate *marketdata.Gate) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sweeper",
			Subsystem: "gate",
			Name:      "fetches_total",
			Help:      "Provider calls made through the fetch gate",
		}, func() float64 { return float64(gate.Stats().Fetches) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sweeper",
			Subsystem: "gate",
			Name:      "failures_total",
			Help:      "Failed, empty or misattributed fetches",
		}, func() float64 { return float64(gate.Stats().Failures) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sweeper",
			Subsystem: "gate",
			Name:      "wait_seconds_total",
			Help:      "Cumulative time callers spent waiting for the gate",
		}, func() float64 { return gate.Stats().WaitTotal.Seconds() }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sweeper",
			Subsystem: "gate",
			Name:      "hold_seconds_total",
			Help:      "Cumulative time the gate was held by provider calls",
		}, func() float64 { return gate.Stats().HoldTotal.Seconds() }),
	)
}
