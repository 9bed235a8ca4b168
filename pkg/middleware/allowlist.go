package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"

	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/netutil"
)

// RegisterPprof mounts /debug/pprof/* behind an IP allowlist.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(allowedCIDRs, logger))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// IPAllowlist restricts access to direct peers inside the given CIDRs. Invalid
// CIDRs are logged and skipped; an empty list denies everyone. Forwarding
// headers are ignored.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	var allowed = make([]string, 0, len(cidrs))
	for _, c := range cidrs {
		if _, err := netutil.ParsePrefixes([]string{c}); err != nil {
			logger.Warn("invalid allowlist CIDR, skipping",
				slog.String("cidr", c),
				slog.String("error", err.Error()),
			)
			continue
		}
		allowed = append(allowed, c)
	}
	prefixes, _ := netutil.ParsePrefixes(allowed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !netutil.Contains(prefixes, r.RemoteAddr) {
				logger.WarnContext(r.Context(), "access denied by IP allowlist",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "access restricted by IP allowlist"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
