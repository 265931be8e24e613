// Package bridge is a host audio adapter that reaches a remote microphone and
// speaker (typically a browser page) over a single WebSocket.
//
// Wire protocol, client → server:
//
//	text   {"type":"hello","sampleRate":48000}   first message, mandatory
//	binary float32 little-endian mono samples     captured audio
//
// Wire protocol, server → client:
//
//	text   {"type":"capture","active":true|false} start/stop sending frames
//	binary int16 little-endian mono PCM           audio to play immediately
//	text   {"type":"stop"}                        drop any queued playback
//
// Only one client is attached at a time; a new connection replaces the
// previous one. A [Host] exposes the attached client as an [audio.Microphone]
// and an [audio.Speaker].
package bridge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/aura/pkg/audio"
	"github.com/coder/websocket"
)

// ErrNoClient is returned when a device is opened while no client is attached.
var ErrNoClient = errors.New("bridge: no audio client connected")

const (
	frameBuffer  = 64
	writeTimeout = 5 * time.Second
	helloTimeout = 10 * time.Second
)

// Option configures a [Host].
type Option func(*Host)

// WithOriginPatterns sets the origins accepted by the WebSocket handshake in
// addition to the request host.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Host) { h.originPatterns = patterns }
}

// Host accepts audio clients and hands them to the session as devices.
//
// Host is safe for concurrent use.
type Host struct {
	originPatterns []string

	mu      sync.Mutex
	client  *client
	capture *captureStream
}

// New creates a Host with no client attached.
func New(opts ...Option) *Host {
	h := &Host{}
	for _, o := range opts {
		o(h)
	}
	return h
}

// client is one attached WebSocket peer.
type client struct {
	conn       *websocket.Conn
	sampleRate int
	ctx        context.Context
	cancel     context.CancelFunc
}

// controlMessage is the JSON envelope of every text frame.
type controlMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bridge: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *client) writeBinary(data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageBinary, data)
}

// Connected reports whether a client is attached.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client != nil
}

// ServeHTTP upgrades the request and attaches the client until it disconnects.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("bridge: accept failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	helloCtx, helloCancel := context.WithTimeout(r.Context(), helloTimeout)
	typ, data, err := conn.Read(helloCtx)
	helloCancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "hello expected")
		return
	}
	var hello controlMessage
	if typ != websocket.MessageText || json.Unmarshal(data, &hello) != nil || hello.Type != "hello" || hello.SampleRate <= 0 {
		conn.Close(websocket.StatusPolicyViolation, "invalid hello")
		return
	}

	c := &client{conn: conn, sampleRate: hello.SampleRate, ctx: ctx, cancel: cancel}
	h.attach(c)
	slog.Info("bridge: audio client attached", "remote", r.RemoteAddr, "sample_rate", c.sampleRate)

	h.readLoop(c)

	h.detach(c)
	conn.Close(websocket.StatusNormalClosure, "")
	slog.Info("bridge: audio client detached", "remote", r.RemoteAddr)
}

func (h *Host) attach(c *client) {
	h.mu.Lock()
	prev := h.client
	h.client = c
	h.mu.Unlock()

	if prev != nil {
		prev.cancel()
		prev.conn.Close(websocket.StatusGoingAway, "replaced by a new client")
	}
}

// detach removes c and ends any capture stream that was reading from it.
func (h *Host) detach(c *client) {
	h.mu.Lock()
	if h.client != c {
		h.mu.Unlock()
		return
	}
	h.client = nil
	capture := h.capture
	h.capture = nil
	h.mu.Unlock()

	if capture != nil {
		capture.end()
	}
}

// readLoop decodes captured frames until the client goes away.
func (h *Host) readLoop(c *client) {
	var captured int
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		samples, err := decodeFloat32(data)
		if err != nil {
			slog.Warn("bridge: dropping malformed frame", "bytes", len(data))
			continue
		}

		h.mu.Lock()
		capture := h.capture
		h.mu.Unlock()
		if capture == nil {
			continue
		}
		capture.deliver(audio.Frame{
			Samples:    samples,
			SampleRate: c.sampleRate,
			Timestamp:  time.Duration(captured) * time.Second / time.Duration(c.sampleRate),
		})
		captured += len(samples)
	}
}

// decodeFloat32 converts little-endian float32 bytes into samples.
func decodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", audio.ErrMalformedAudio, len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func (h *Host) current() (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil, ErrNoClient
	}
	return h.client, nil
}

// ─── Microphone ───────────────────────────────────────────────────────────────

// Microphone returns the attached client's microphone.
func (h *Host) Microphone() audio.Microphone { return microphone{h} }

type microphone struct{ h *Host }

// Open starts capture on the attached client. A previously opened stream is
// ended first.
func (m microphone) Open(_ context.Context) (audio.CaptureStream, error) {
	c, err := m.h.current()
	if err != nil {
		return nil, err
	}
	s := &captureStream{h: m.h, c: c, frames: make(chan audio.Frame, frameBuffer)}

	m.h.mu.Lock()
	prev := m.h.capture
	m.h.capture = s
	m.h.mu.Unlock()
	if prev != nil {
		prev.end()
	}

	active := true
	if err := c.writeJSON(controlMessage{Type: "capture", Active: &active}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("bridge: start capture: %w", err)
	}
	return s, nil
}

// captureStream implements [audio.CaptureStream] for one Open call.
type captureStream struct {
	h *Host
	c *client

	mu     sync.Mutex
	frames chan audio.Frame
	ended  bool
}

func (s *captureStream) Frames() <-chan audio.Frame { return s.frames }

// deliver forwards f without blocking the read loop; a full buffer drops it.
func (s *captureStream) deliver(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	select {
	case s.frames <- f:
	default:
		slog.Warn("bridge: capture buffer full, dropping frame")
	}
}

// end closes the frame channel once.
func (s *captureStream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		close(s.frames)
	}
}

// Close tells the client to stop capturing and ends the stream.
func (s *captureStream) Close() error {
	s.h.mu.Lock()
	owned := s.h.capture == s
	if owned {
		s.h.capture = nil
	}
	s.h.mu.Unlock()

	s.mu.Lock()
	already := s.ended
	s.mu.Unlock()
	s.end()

	if !owned || already {
		return nil
	}
	active := false
	if err := s.c.writeJSON(controlMessage{Type: "capture", Active: &active}); err != nil && s.c.ctx.Err() == nil {
		return fmt.Errorf("bridge: stop capture: %w", err)
	}
	return nil
}

// ─── Speaker ──────────────────────────────────────────────────────────────────

// Speaker returns the attached client's speaker.
func (h *Host) Speaker() audio.Speaker { return speaker{h} }

type speaker struct{ h *Host }

// Open returns an output whose clock starts now. The client always receives
// mono PCM16 at sampleRate.
func (sp speaker) Open(_ context.Context, sampleRate int) (audio.Output, error) {
	c, err := sp.h.current()
	if err != nil {
		return nil, err
	}
	return &output{c: c, sampleRate: sampleRate, start: time.Now(), voices: make(map[*voice]struct{})}, nil
}

// output paces chunks to the client in wall-clock time.
type output struct {
	c          *client
	sampleRate int
	start      time.Time

	mu     sync.Mutex
	voices map[*voice]struct{}
	closed bool
}

func (o *output) CurrentTime() time.Duration { return time.Since(o.start) }

// Play sends buf to the client when the clock reaches at and reports
// completion once its duration has elapsed.
func (o *output) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	if buf == nil || len(buf.Channels) == 0 {
		return nil, fmt.Errorf("bridge: play: %w: empty buffer", audio.ErrMalformedAudio)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errors.New("bridge: play: output closed")
	}

	v := &voice{o: o}
	data := audio.EncodePCM16(buf.Channels[0])
	delay := max(at-o.CurrentTime(), 0)

	v.send = time.AfterFunc(delay, func() {
		if v.isStopped() {
			return
		}
		if err := o.c.writeBinary(data); err != nil && o.c.ctx.Err() == nil {
			slog.Warn("bridge: failed to send audio chunk", "err", err)
		}
	})
	v.done = time.AfterFunc(delay+buf.Duration(), func() {
		if !v.finish() {
			return
		}
		if onEnded != nil {
			onEnded()
		}
	})
	o.voices[v] = struct{}{}
	return v, nil
}

// Close stops all voices and tells the client to drop queued audio.
func (o *output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	voices := make([]*voice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	if err := o.c.writeJSON(controlMessage{Type: "stop"}); err != nil && o.c.ctx.Err() == nil {
		return fmt.Errorf("bridge: close output: %w", err)
	}
	return nil
}

func (o *output) forget(v *voice) {
	o.mu.Lock()
	delete(o.voices, v)
	o.mu.Unlock()
}

// voice is one chunk scheduled on an output.
type voice struct {
	o    *output
	send *time.Timer
	done *time.Timer

	mu      sync.Mutex
	stopped bool
	ended   bool
}

func (v *voice) isStopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// finish marks natural completion. Returns false if the voice was stopped.
func (v *voice) finish() bool {
	v.mu.Lock()
	ok := !v.stopped && !v.ended
	v.ended = true
	v.mu.Unlock()
	v.o.forget(v)
	return ok
}

func (v *voice) Stop() {
	v.mu.Lock()
	if v.stopped || v.ended {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.mu.Unlock()

	v.send.Stop()
	v.done.Stop()
	v.o.forget(v)
}

// Compile-time interface assertions.
var (
	_ http.Handler        = (*Host)(nil)
	_ audio.Microphone    = microphone{}
	_ audio.Speaker       = speaker{}
	_ audio.CaptureStream = (*captureStream)(nil)
	_ audio.Output        = (*output)(nil)
	_ audio.Voice         = (*voice)(nil)
)
