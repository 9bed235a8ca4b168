package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of signed tokens by type",
		},
		[]string{"type"},
	)

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Total number of token verifications by type and result",
		},
		[]string{"type", "result"},
	)

	tokensRevokedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_revoked_total",
			Help: "Total number of tokens added to the revocation list",
		},
		[]string{"type"},
	)
)
