// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and hand out controlled sessions.
// Use Session to inject server events and inspect what the caller sent.
//
// Example:
//
//	p := &mock.Provider{}
//	sess, _ := p.Connect(ctx, cfg)
//	m := p.LastSession()
//	m.Emit(live.Event{Type: live.EventOpen})
//	m.Emit(live.Event{Type: live.EventAudio, Audio: pcm})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/aura/pkg/provider/live"
)

// ErrClosed is returned by send methods after Close.
var ErrClosed = errors.New("mock: session closed")

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectHook, if set, runs at the start of Connect outside the lock.
	// Tests use it to block or observe the handshake.
	ConnectHook func(ctx context.Context) error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	sessions []*Session
}

// Connect records the call and returns a fresh Session.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.Session, error) {
	p.mu.Lock()
	hook := p.ConnectHook
	p.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	s := NewSession(64)
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// LastSession returns the most recent session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// ConnectCount returns the number of Connect calls.
func (p *Provider) ConnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// ToolResponse records one SendToolResponse call.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Session is a mock implementation of live.Session.
type Session struct {
	mu     sync.Mutex
	events chan live.Event
	ended  bool
	err    error

	// SendAudioErr, if non-nil, is returned by SendAudio.
	SendAudioErr error

	audio         [][]byte
	toolResponses []ToolResponse
	closeCount    int
}

// NewSession returns a Session whose event channel has the given capacity.
func NewSession(buffer int) *Session {
	return &Session{events: make(chan live.Event, buffer)}
}

// Emit injects ev. Events emitted after the session ended are dropped.
func (s *Session) Emit(ev live.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events <- ev
}

// Fail ends the session as a transport failure would: Err reports err and
// the event channel is closed.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.err = err
	s.ended = true
	close(s.events)
}

// SendAudio records the chunk.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCount > 0 {
		return ErrClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.audio = append(s.audio, cp)
	return nil
}

// SendToolResponse records the acknowledgement.
func (s *Session) SendToolResponse(id, name string, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCount > 0 {
		return ErrClosed
	}
	s.toolResponses = append(s.toolResponses, ToolResponse{ID: id, Name: name, Response: response})
	return nil
}

// Events returns the event channel.
func (s *Session) Events() <-chan live.Event { return s.events }

// Err returns the error passed to Fail.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close records the call and closes the event channel once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	if !s.ended {
		s.ended = true
		close(s.events)
	}
	return nil
}

// SentAudio returns copies of every chunk passed to SendAudio.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// ToolResponses returns every recorded acknowledgement.
func (s *Session) ToolResponses() []ToolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolResponse, len(s.toolResponses))
	copy(out, s.toolResponses)
	return out
}

// CloseCount returns the number of Close calls.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Ensure the mocks implement the live interfaces at compile time.
var (
	_ live.Provider = (*Provider)(nil)
	_ live.Session  = (*Session)(nil)
)
