// Package health serves the liveness and readiness probes of the Aura host.
//
// GET /healthz answers 200 whenever the process can serve HTTP. GET /readyz
// answers 200 only when every registered [Checker] passes, and 503 otherwise.
// Both bodies are JSON of the form
//
//	{"status":"ok","checks":{"live":"ok","audio":"fail: audio is disconnected"}}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when healthy.
type Checker struct {
	// Name keys the check in the JSON body, e.g. "live" or "session".
	Name string

	// Check must honour ctx cancellation.
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. It is safe for concurrent use.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

// New creates a [Handler] evaluating checkers in the given order.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Add registers further checkers, for dependencies that are only known after
// the handler was built (an optional search backend, for instance).
func (h *Handler) Add(checkers ...Checker) {
	h.mu.Lock()
	h.checkers = append(h.checkers, checkers...)
	h.mu.Unlock()
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checkers := h.checkers
	h.mu.RUnlock()

	rep := report{Status: "ok", Checks: make(map[string]string, len(checkers))}
	status := http.StatusOK
	for _, c := range checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, rep)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
