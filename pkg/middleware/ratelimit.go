package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/netutil"
)

// visitor tracks a rate limiter per client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore keeps per-IP limiters. Stale entries are swept lazily on
// access, at most once per ttl, so no background goroutine is needed.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time
}

func newVisitorStore(limit rate.Limit, burst int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

func (s *visitorStore) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if now.Sub(s.lastSweep) >= s.ttl {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.ttl {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit allows each client IP a burst of `requests` that refills evenly
// over window. Excess requests get 429 with Retry-After.
func RateLimit(requests int, window time.Duration, trustedProxies []netip.Prefix, logger *slog.Logger) func(http.Handler) http.Handler {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	limit := rate.Limit(float64(requests) / window.Seconds())
	store := newVisitorStore(limit, requests, 2*window)
	retryAfter := strconv.Itoa(int((window / time.Duration(requests)).Seconds()) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := netutil.ClientIP(r, trustedProxies)
			if !store.allow(ip) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retryAfter)
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
