// Package playback schedules streamed PCM16 chunks on an [audio.Output] for
// gapless, strictly ordered playback.
//
// A [Scheduler] keeps a monotone start cursor on the output clock. Every
// enqueued chunk starts where the previous one ends, or immediately if the
// cursor has fallen behind the clock. The scheduler also tracks the set of
// in-flight units so that callers learn when the last one has finished.
//
// All exported methods are safe for concurrent use.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/aura/pkg/audio"
)

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithSampleRate sets the sample rate used to decode enqueued chunks.
// Defaults to [audio.OutputSampleRate].
func WithSampleRate(hz int) Option {
	return func(s *Scheduler) {
		if hz > 0 {
			s.sampleRate = hz
		}
	}
}

// WithOnIdle registers fn to be called every time the in-flight set becomes
// empty after a unit completes. fn runs outside the scheduler lock on the
// goroutine that delivered the completion.
func WithOnIdle(fn func()) Option {
	return func(s *Scheduler) {
		s.onIdle = fn
	}
}

// Scheduler queues decoded chunks on an output without gaps or overlap.
type Scheduler struct {
	out        audio.Output
	sampleRate int
	onIdle     func()

	mu       sync.Mutex
	next     time.Duration // output clock time at which the next unit starts
	seq      uint64
	inFlight map[uint64]audio.Voice
	epoch    uint64 // bumped by StopAll; completions from older epochs are ignored
}

// New creates a Scheduler that plays on out.
func New(out audio.Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:        out,
		sampleRate: audio.OutputSampleRate,
		inFlight:   make(map[uint64]audio.Voice),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue decodes raw as mono PCM16 and schedules it directly after the
// previously enqueued chunk. It returns the output clock time at which the
// chunk starts.
//
// A malformed chunk returns an error wrapping [audio.ErrMalformedAudio] and
// leaves the cursor untouched. An empty chunk is accepted and schedules
// nothing.
func (s *Scheduler) Enqueue(raw []byte) (time.Duration, error) {
	buf, err := audio.DecodePCM16(raw, s.sampleRate, 1)
	if err != nil {
		return 0, fmt.Errorf("playback: enqueue: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.next, s.out.CurrentTime())
	if buf.Frames() == 0 {
		return start, nil
	}

	s.seq++
	id, epoch := s.seq, s.epoch
	voice, err := s.out.Play(buf, start, func() { s.finished(id, epoch) })
	if err != nil {
		return 0, fmt.Errorf("playback: enqueue: %w", err)
	}
	s.next = start + buf.Duration()
	s.inFlight[id] = voice
	return start, nil
}

// finished removes a completed unit and fires the idle callback when it was
// the last one.
func (s *Scheduler) finished(id, epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if _, ok := s.inFlight[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.inFlight, id)
	idle := len(s.inFlight) == 0
	s.mu.Unlock()

	if idle && s.onIdle != nil {
		s.onIdle()
	}
}

// StopAll halts every in-flight unit, clears the set and resets the cursor.
// Completions of stopped units are ignored and never trigger the idle
// callback.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	voices := make([]audio.Voice, 0, len(s.inFlight))
	for _, v := range s.inFlight {
		voices = append(voices, v)
	}
	clear(s.inFlight)
	s.next = 0
	s.epoch++
	s.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
}

// Active returns the number of in-flight units.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
