// Package server exposes the session controller over HTTP.
//
// Routes:
//
//	GET  /api/state                 current snapshot as JSON
//	GET  /api/events                snapshot stream (server-sent events)
//	POST /api/session/start         start a voice session
//	POST /api/session/stop          stop the active session
//	POST /api/conversation/reset    stop and clear all session state
//	POST /api/reminders/{id}/ack    dismiss the active reminder notification
//	GET  /audio                     audio bridge WebSocket (when configured)
//	GET  /healthz, /readyz          probes (when configured)
//	GET  /metrics                   Prometheus scrape endpoint (when configured)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/aura/internal/health"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/session"
)

// Controller is the subset of [session.Controller] served over HTTP.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Reset()
	AcknowledgeNotification(id string) bool
	Snapshot() session.Snapshot
	Changes() (<-chan struct{}, func())
}

var _ Controller = (*session.Controller)(nil)

// Option is a functional option for [New].
type Option func(*Server)

// WithAudio mounts the audio bridge handler at /audio.
func WithAudio(h http.Handler) Option {
	return func(s *Server) { s.audio = h }
}

// WithHealth registers the health probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMetrics sets the metrics recorded by the request middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPingInterval sets how often idle event streams receive a keepalive.
// Default: 15s.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ping = d
		}
	}
}

// Server routes HTTP requests to a [Controller].
type Server struct {
	ctrl           Controller
	audio          http.Handler
	health         *health.Handler
	metricsHandler http.Handler
	metrics        *observe.Metrics
	ping           time.Duration

	handler http.Handler
}

// New builds the route table for ctrl.
func New(ctrl Controller, opts ...Option) *Server {
	s := &Server{
		ctrl: ctrl,
		ping: 15 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/session/start", s.handleStart)
	mux.HandleFunc("POST /api/session/stop", s.handleStop)
	mux.HandleFunc("POST /api/conversation/reset", s.handleReset)
	mux.HandleFunc("POST /api/reminders/{id}/ack", s.handleAck)
	if s.audio != nil {
		mux.Handle("GET /audio", s.audio)
	}
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ── Handlers ────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string           `json:"error"`
	State session.Snapshot `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		status := startStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Warn("server: session start failed", "err", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), State: s.ctrl.Snapshot()})
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// startStatus maps a Start error onto an HTTP status code.
func startStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrActive), errors.Is(err, session.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, session.ErrAcquisition):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Reset()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.AcknowledgeNotification(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such notification", State: s.ctrl.Snapshot()})
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleEvents streams a "state" event with the full snapshot on connect and
// after every change. Bursts of changes coalesce into one event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sw, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	changes, cancel := s.ctrl.Changes()
	defer cancel()

	if err := sw.Send("state", s.ctrl.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if err := sw.Send("state", s.ctrl.Snapshot()); err != nil {
				slog.Debug("server: event stream closed", "err", err)
				return
			}
		case <-ticker.C:
			if err := sw.Send("ping", struct{}{}); err != nil {
				return
			}
		}
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("server: encode response", "err", err)
	}
}
