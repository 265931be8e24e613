// Package mock provides in-memory mock implementations of the [audio.Microphone],
// [audio.CaptureStream], [audio.Speaker] and [audio.Output] interfaces for use
// in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewCaptureStream(8)
//	mic := &mock.Microphone{Stream: stream}
//	out := &mock.Output{}
//	spk := &mock.Speaker{Output: out}
//	stream.Push(audio.Frame{Samples: samples, SampleRate: 16000})
//	out.Finish(0) // complete the first scheduled playback unit
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/aura/pkg/audio"
)

// ─── Capture ──────────────────────────────────────────────────────────────────

// CaptureStream is a mock implementation of [audio.CaptureStream]. Frames are
// injected with [CaptureStream.Push]; Close closes the frame channel.
type CaptureStream struct {
	mu     sync.Mutex
	frames chan audio.Frame
	closed bool

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewCaptureStream returns a CaptureStream whose frame channel has the given
// buffer capacity.
func NewCaptureStream(buffer int) *CaptureStream {
	return &CaptureStream{frames: make(chan audio.Frame, buffer)}
}

// Push delivers f on the frame channel. Frames pushed after Close are dropped.
func (s *CaptureStream) Push(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frames <- f
}

// Frames returns the frame channel.
func (s *CaptureStream) Frames() <-chan audio.Frame { return s.frames }

// Close records the call and closes the frame channel once.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *CaptureStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Microphone is a mock implementation of [audio.Microphone].
type Microphone struct {
	mu sync.Mutex

	// Stream is returned by Open. When nil, Open returns a fresh CaptureStream.
	Stream audio.CaptureStream

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// OpenCallCount is the number of times Open was called.
	OpenCallCount int
}

// Open records the call and returns Stream or OpenErr.
func (m *Microphone) Open(_ context.Context) (audio.CaptureStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCallCount++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Stream == nil {
		return NewCaptureStream(16), nil
	}
	return m.Stream, nil
}

// ─── Output ───────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of Output.Play.
type PlayCall struct {
	// Buffer is the buffer passed to Play.
	Buffer *audio.Buffer

	// At is the requested start time.
	At time.Duration

	// Voice is the handle returned to the caller.
	Voice *Voice

	onEnded func()
}

// Voice is a mock implementation of [audio.Voice].
type Voice struct {
	mu       sync.Mutex
	stopped  bool
	finished bool
}

// Stop marks the voice as stopped.
func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
}

// Stopped reports whether Stop was called.
func (v *Voice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// Output is a mock implementation of [audio.Output] with a manually driven
// clock. Completion callbacks only run when the test calls [Output.Finish].
type Output struct {
	mu    sync.Mutex
	now   time.Duration
	calls []PlayCall

	// PlayErr, if non-nil, is returned by Play.
	PlayErr error

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SetTime moves the output clock to d.
func (o *Output) SetTime(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = d
}

// CurrentTime returns the manually driven clock.
func (o *Output) CurrentTime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Play records the call and returns a new Voice.
func (o *Output) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PlayErr != nil {
		return nil, o.PlayErr
	}
	v := &Voice{}
	o.calls = append(o.calls, PlayCall{Buffer: buf, At: at, Voice: v, onEnded: onEnded})
	return v, nil
}

// Calls returns a copy of all recorded Play calls.
func (o *Output) Calls() []PlayCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PlayCall, len(o.calls))
	copy(out, o.calls)
	return out
}

// Finish runs the completion callback of the i-th Play call, as a real
// output would when the unit ends. Stopped or already finished voices are
// ignored. Returns false if nothing was invoked.
func (o *Output) Finish(i int) bool {
	o.mu.Lock()
	if i < 0 || i >= len(o.calls) {
		o.mu.Unlock()
		return false
	}
	call := o.calls[i]
	o.mu.Unlock()

	call.Voice.mu.Lock()
	if call.Voice.stopped || call.Voice.finished {
		call.Voice.mu.Unlock()
		return false
	}
	call.Voice.finished = true
	call.Voice.mu.Unlock()

	if call.onEnded != nil {
		call.onEnded()
	}
	return true
}

// Close records the call.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CloseCallCount++
	return nil
}

// Speaker is a mock implementation of [audio.Speaker].
type Speaker struct {
	mu sync.Mutex

	// Output is returned by Open. When nil, Open returns a fresh Output.
	Output audio.Output

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// SampleRates records the sample rate of every Open call.
	SampleRates []int
}

// Open records the call and returns Output or OpenErr.
func (s *Speaker) Open(_ context.Context, sampleRate int) (audio.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SampleRates = append(s.SampleRates, sampleRate)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	if s.Output == nil {
		return &Output{}, nil
	}
	return s.Output, nil
}

// Compile-time interface assertions.
var (
	_ audio.Microphone    = (*Microphone)(nil)
	_ audio.CaptureStream = (*CaptureStream)(nil)
	_ audio.Speaker       = (*Speaker)(nil)
	_ audio.Output        = (*Output)(nil)
	_ audio.Voice         = (*Voice)(nil)
)
