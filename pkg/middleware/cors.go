package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists allowed origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is how long (in seconds) preflight results may be cached.
	MaxAge int
	// AllowCredentials is required for the refresh_token cookie to be sent
	// cross-origin. With credentials the matching origin is echoed back,
	// never "*".
	AllowCredentials bool
	// Environment "development" implies a wildcard origin.
	Environment string
}

// DefaultCORSConfig returns a permissive configuration for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{CorrelationIDHeader},
		MaxAge:           3600,
		AllowCredentials: true,
		Environment:      "development",
	}
}

// CORS handles Cross-Origin Resource Sharing headers and answers preflights.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = def.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = def.AllowedHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	wildcard := cfg.Environment == "development"
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[o] = struct{}{}
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			_, listed := origins[origin]

			switch {
			case origin != "" && (listed || wildcard) && cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && listed:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			h.Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
