package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker is a function that checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const readinessTimeout = 5 * time.Second

// Response is the JSON response returned by the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	fn       Checker
	critical bool
}

// Handler provides HTTP health check endpoints. A failing critical check makes
// the service not ready (503); a failing non-critical check only degrades it.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]check
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{checks: make(map[string]check)}
}

// Register adds a critical checker. It is shorthand for RegisterCritical.
func (h *Handler) Register(name string, checker Checker) {
	h.RegisterCritical(name, checker)
}

// RegisterCritical adds a checker whose failure marks the service down.
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.add(name, checker, true)
}

// RegisterNonCritical adds a checker whose failure marks the service degraded.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.add(name, checker, false)
}

func (h *Handler) add(name string, fn Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: critical}
}

// LivenessHandler reports 200 while the process is running.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler runs all registered checks concurrently.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		h.mu.RLock()
		checks := make(map[string]check, len(h.checks))
		for k, v := range h.checks {
			checks[k] = v
		}
		h.mu.RUnlock()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]CheckResult, len(checks))
		)
		for name, c := range checks {
			wg.Add(1)
			go func(name string, c check) {
				defer wg.Done()
				res := CheckResult{Status: StatusUp, Critical: c.critical}
				if err := c.fn(ctx); err != nil {
					res.Status = StatusDown
					res.Error = err.Error()
				}
				mu.Lock()
				results[name] = res
				mu.Unlock()
			}(name, c)
		}
		wg.Wait()

		overall := StatusUp
		for _, res := range results {
			if res.Status != StatusDown {
				continue
			}
			if res.Critical {
				overall = StatusDown
				break
			}
			overall = StatusDegraded
		}

		code := http.StatusOK
		if overall == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeResponse(w, code, Response{Status: overall, Timestamp: time.Now().UTC(), Checks: results})
	}
}

func writeResponse(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
