package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_policy_decisions_total",
			Help: "Total number of policy decisions by deciding gate and result",
		},
		[]string{"gate", "result"},
	)

	decisionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_policy_decision_errors_total",
			Help: "Total number of policy evaluations aborted by a lookup failure",
		},
		[]string{"gate"},
	)
)
