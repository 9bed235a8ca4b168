package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aipowereddevteam/auth2026/pkg/health"
	"github.com/aipowereddevteam/auth2026/pkg/middleware"
)

// RouterConfig holds the transport settings.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig

	// RateLimitRequests per RateLimitWindow per client IP on the public
	// auth routes.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// TrustedProxies may set X-Forwarded-For.
	TrustedProxies []netip.Prefix

	// OAuthBrokerCIDRs may call /internal/oauth/login.
	OAuthBrokerCIDRs []string
	PprofCIDRs       []string

	SecureCookies bool

	// RefreshTTL is the refresh cookie lifetime. Zero means the default
	// refresh token lifetime.
	RefreshTTL time.Duration
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(svc AuthService, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.SecurityHeaders)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	h := NewHandler(svc, logger, cfg.TrustedProxies, cfg.SecureCookies)
	if cfg.RefreshTTL > 0 {
		h.refreshTTL = cfg.RefreshTTL
	}

	// Bridges bearer tokens to the token service.
	validate := func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := svc.VerifyAccessToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			PrincipalID: claims.PrincipalID,
			Email:       claims.Email,
			Role:        string(claims.Role),
		}, nil
	}
	authenticate := middleware.Authenticate(validate, logger)
	throttle := middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.TrustedProxies, logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Group(func(r chi.Router) {
			r.Use(throttle)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/mfa/verify", h.VerifyMfa)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})
		r.With(authenticate).Get("/profile", h.Profile)
	})

	r.Route("/api/v1/mfa", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		r.Use(authenticate)

		r.Post("/generate", h.GenerateMfa)
		r.Post("/enable", h.EnableMfa)
		r.Post("/disable", h.DisableMfa)
		r.Post("/backup-codes", h.RegenerateBackupCodes)
	})

	r.Route("/api/v1/resources", func(r chi.Router) {
		r.Use(authenticate)
		r.With(h.RequirePolicy).Get("/{id}", h.GetResource)
	})

	r.Route("/internal/oauth", func(r chi.Router) {
		r.Use(middleware.IPAllowlist(cfg.OAuthBrokerCIDRs, logger))
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		r.Post("/login", h.OAuthLogin)
	})

	return r
}
