package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	methodPassword = "password"
	methodOAuth    = "oauth"
	methodMfa      = "mfa"

	resultSuccess     = "success"
	resultFailure     = "failure"
	resultMfaRequired = "mfa_required"
)

var loginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total number of login attempts by method and result",
	},
	[]string{"method", "result"},
)
