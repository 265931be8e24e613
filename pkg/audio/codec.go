package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedAudio is returned when a PCM payload does not match the expected
// sample layout.
var ErrMalformedAudio = errors.New("audio: malformed pcm data")

// pcmScale maps between float samples and signed 16-bit integers.
const pcmScale = 32768.0

// EncodePCM16 converts float samples to signed 16-bit little-endian PCM using
// round(sample*32768). Samples are expected in [-1, 1]; values outside that
// range (including exactly +1.0) wrap rather than clip.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(int32(math.Round(float64(s) * pcmScale)))
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

// DecodePCM16 converts interleaved signed 16-bit little-endian PCM into a
// de-interleaved [Buffer]. The byte length must be a multiple of 2*channels;
// otherwise an error wrapping [ErrMalformedAudio] is returned.
func DecodePCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrMalformedAudio, channels)
	}
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedAudio, len(data), 2*channels)
	}

	frames := len(data) / 2 / channels
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			off := (i*channels + ch) * 2
			v := int16(data[off]) | int16(data[off+1])<<8
			buf.Channels[ch][i] = float32(float64(v) / pcmScale)
		}
	}
	return buf, nil
}

// EncodeBase64 returns the standard base64 encoding of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 reverses [EncodeBase64].
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return b, nil
}
