package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it to release a producer that is still writing to a stream nobody
// consumes any more (e.g. the Frames channel of a closed [CaptureStream]).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
