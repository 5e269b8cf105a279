// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     [Checker] passes.
//
// Responses are JSON with a top-level "status" field ("ok" or "fail") and a
// "checks" map with each named checker's outcome and duration.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named health check. Check returns nil when the dependency is
// healthy and must respect context cancellation.
type Checker struct {
	// Name labels this check in the JSON response (e.g. "backend").
	Name string

	// Check probes the dependency.
	Check func(ctx context.Context) error
}

// checkResult is one checker's outcome in the JSON response.
type checkResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz endpoints. The checker list is
// fixed at construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every registered [Checker] passes. Each
// check runs under its own [checkTimeout] deadline derived from the request
// context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkResult, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := c.Check(ctx)
		elapsed := time.Since(start)
		cancel()

		cr := checkResult{Status: "ok", Duration: elapsed.Round(time.Millisecond).String()}
		if err != nil {
			cr.Status = "fail"
			cr.Error = err.Error()
			allOK = false
		}
		checks[c.Name] = cr
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
