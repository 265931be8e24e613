package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var errNoFlush = errors.New("server: response writer does not support flushing")

// sseWriter frames server-sent events. Send is safe for concurrent use.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errNoFlush
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: f}, nil
}

// Send writes one event with data encoded as JSON.
func (s *sseWriter) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
