package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_audit_entries_total",
			Help: "Total number of audit entries by outcome (recorded, failed, dropped)",
		},
		[]string{"result"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_audit_queue_depth",
			Help: "Number of audit entries waiting for the sink",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
