// Package audio defines the audio contracts and pure transforms used by the
// Aura voice assistant.
//
// The host's raw media primitives are reached through two narrow interfaces:
//
//   - [Microphone] acquires a [CaptureStream] that delivers [Frame] values.
//   - [Speaker] opens an [Output] whose clock drives gapless playback
//     scheduling of decoded [Buffer] values.
//
// Implementations are provided by host adapter packages (e.g. audio/bridge).
// The codec functions in this package (PCM16 and base64) are stateless and
// safe for concurrent use.
package audio

import (
	"context"
	"time"
)

// CaptureStream is an acquired microphone stream.
//
// Implementations must be safe for concurrent use. The Frames channel is
// closed when the stream ends, either because Close was called or because the
// device went away.
type CaptureStream interface {
	// Frames returns the channel delivering captured frames in capture order.
	Frames() <-chan Frame

	// Close releases the microphone. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Microphone is the entry point for audio capture.
type Microphone interface {
	// Open acquires the microphone. ctx governs the acquisition only. Returns an
	// error when the device is unavailable or access is denied.
	Open(ctx context.Context) (CaptureStream, error)
}

// Voice is the handle of one scheduled playback unit.
type Voice interface {
	// Stop halts playback immediately. A stopped voice never reports
	// completion. Stop is idempotent.
	Stop()
}

// Output is an opened audio output with its own monotonic clock.
//
// Implementations must be safe for concurrent use.
type Output interface {
	// CurrentTime returns the output clock. It starts at zero when the output
	// is opened and never decreases.
	CurrentTime() time.Duration

	// Play schedules buf to start at the given output clock time. If at lies in
	// the past, playback starts immediately. onEnded is invoked exactly once
	// when the unit has finished playing, from an arbitrary goroutine, unless
	// the returned voice was stopped first.
	Play(buf *Buffer, at time.Duration, onEnded func()) (Voice, error)

	// Close stops all playback and releases the output. Idempotent.
	Close() error
}

// Speaker is the entry point for audio output.
type Speaker interface {
	// Open opens an output running at sampleRate. ctx governs the open call
	// only.
	Open(ctx context.Context, sampleRate int) (Output, error)
}
