// Package gemini implements the live.Provider interface for Google's Gemini
// Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live
// endpoint and exchanges JSON messages according to the BidiGenerateContent
// protocol. Audio is transmitted as base64-encoded PCM chunks; everything the
// server sends is translated into an ordered stream of [live.Event] values.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/MrWong99/aura/pkg/audio"
	"github.com/MrWong99/aura/pkg/provider/live"
	"github.com/coder/websocket"
)

// Compile-time assertions that Provider and session satisfy the live interfaces.
var _ live.Provider = (*Provider)(nil)
var _ live.Session = (*session)(nil)

// ErrSessionClosed is returned by send methods after Close.
var ErrSessionClosed = errors.New("gemini: session closed")

const (
	defaultModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	eventBuffer       = 64
	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements live.Provider for Google's Gemini Live API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Connect dials Gemini Live and sends the setup message. The returned session
// delivers [live.EventOpen] once the server acknowledges the setup.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, url.QueryEscape(p.apiKey),
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}
	// Model turns with inline audio routinely exceed the 32 KiB default.
	conn.SetReadLimit(16 << 20)

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		events: make(chan live.Event, eventBuffer),
		done:   make(chan struct{}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSetup(p.model, cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string             `json:"model"`
	GenerationConfig         generationConfig   `json:"generationConfig"`
	SystemInstruction        *systemInstruction `json:"systemInstruction,omitempty"`
	Tools                    []geminiTool       `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}          `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}          `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type geminiTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type toolResponseMessage struct {
	ToolResponse toolResponse `json:"toolResponse"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete        *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent        *serverContent   `json:"serverContent,omitempty"`
	ToolCall             *toolCallMsg     `json:"toolCall,omitempty"`
	ToolCallCancellation *json.RawMessage `json:"toolCallCancellation,omitempty"`
	Error                *geminiError     `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

type toolCallMsg struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn   *websocket.Conn
	events chan live.Event

	mu     sync.Mutex
	errVal error
	done   chan struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// sendSetup sends the initial BidiGenerateContent setup message.
func (s *session) sendSetup(model string, cfg live.SessionConfig) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
		},
	}

	if cfg.Instructions != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.Instructions}},
		}
	}

	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	if len(cfg.Tools) > 0 {
		decls := make([]functionDeclaration, len(cfg.Tools))
		for i, t := range cfg.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		msg.Setup.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	if cfg.TranscribeInput {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.TranscribeOutput {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}

	return s.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads messages from the WebSocket and translates them into
// events. It owns the events channel and closes it when it exits.
func (s *session) receiveLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			// If the session context was cancelled, exit cleanly.
			if s.ctx.Err() != nil {
				return
			}
			s.setErr(fmt.Errorf("gemini: receive: %w", err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("gemini: skipping malformed frame", "err", err)
			continue
		}

		if !s.handleServerMessage(&msg) {
			return
		}
	}
}

// handleServerMessage emits the events contained in msg in protocol order.
// It returns false once the session context is done.
func (s *session) handleServerMessage(msg *serverMessage) bool {
	if msg.SetupComplete != nil {
		if !s.emit(live.Event{Type: live.EventOpen}) {
			return false
		}
	}
	if msg.Error != nil {
		text := "unknown error"
		if msg.Error.Message != "" {
			text = msg.Error.Message
		}
		if !s.emit(live.Event{Type: live.EventError, Err: fmt.Errorf("gemini: %s", text)}) {
			return false
		}
	}
	if msg.ServerContent != nil {
		if !s.handleServerContent(msg.ServerContent) {
			return false
		}
	}
	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			call := &live.ToolCall{ID: fc.ID, Name: fc.Name, Args: args}
			if !s.emit(live.Event{Type: live.EventToolCall, ToolCall: call}) {
				return false
			}
		}
	}
	return true
}

func (s *session) handleServerContent(sc *serverContent) bool {
	// User speech recognition result.
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		if !s.emit(live.Event{Type: live.EventInputTranscript, Text: sc.InputTranscription.Text}) {
			return false
		}
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil {
				continue
			}
			pcm, err := audio.DecodeBase64(p.InlineData.Data)
			if err != nil {
				slog.Warn("gemini: dropping undecodable audio part", "err", err)
				continue
			}
			if len(pcm) == 0 {
				continue
			}
			if !s.emit(live.Event{Type: live.EventAudio, Audio: pcm}) {
				return false
			}
		}
	}

	// Model output transcription (text version of audio output).
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		if !s.emit(live.Event{Type: live.EventOutputTranscript, Text: sc.OutputTranscription.Text}) {
			return false
		}
	}

	if sc.TurnComplete {
		if !s.emit(live.Event{Type: live.EventTurnComplete}) {
			return false
		}
	}
	return true
}

func (s *session) emit(ev live.Event) bool {
	ev.Time = time.Now()
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection alive.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ── Session methods ────────────────────────────────────────────────────────────

// SendAudio delivers a raw PCM audio chunk (16 kHz, s16le, mono) to the model.
func (s *session) SendAudio(chunk []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{MIMEType: audio.InputMIMEType, Data: audio.EncodeBase64(chunk)},
			},
		},
	}
	return s.writeJSON(msg)
}

// SendToolResponse acknowledges a function call.
func (s *session) SendToolResponse(id, name string, response map[string]any) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if response == nil {
		response = map[string]any{}
	}
	msg := toolResponseMessage{
		ToolResponse: toolResponse{
			FunctionResponses: []functionResponse{
				{ID: id, Name: name, Response: response},
			},
		},
	}
	return s.writeJSON(msg)
}

// Events returns the ordered inbound event channel.
func (s *session) Events() <-chan live.Event { return s.events }

// Err returns the first non-nil error that caused the session to terminate.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()    // unblocks receiveLoop and keepaliveLoop
	close(s.done) // signals keepaliveLoop via done channel
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
