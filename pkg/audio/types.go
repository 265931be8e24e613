package audio

import "time"

// Wire formats exchanged with the live model. They are fixed by the protocol
// and never negotiated.
const (
	// InputSampleRate is the rate of the PCM16 mono stream sent upstream.
	InputSampleRate = 16000

	// OutputSampleRate is the rate of the PCM16 mono stream received downstream.
	OutputSampleRate = 24000

	// InputMIMEType labels every outbound audio chunk.
	InputMIMEType = "audio/pcm;rate=16000"
)

// Frame is a single block of captured microphone samples. Samples are mono
// and bounded to [-1, 1] by the capture device.
type Frame struct {
	// Samples holds the captured mono samples.
	Samples []float32

	// SampleRate in Hz of Samples (e.g. 48000 for a browser capture graph).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Buffer is decoded, de-interleaved audio ready to be handed to an [Output].
type Buffer struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels holds one sample slice per channel. All slices have equal length.
	Channels [][]float32
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}
