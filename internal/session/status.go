package session

// Status is the lifecycle state of the voice session.
type Status string

const (
	// StatusIdle means no session is running.
	StatusIdle Status = "idle"

	// StatusProcessing covers connection setup and long-running tools such
	// as web search.
	StatusProcessing Status = "processing"

	// StatusListening means the microphone is streaming and the assistant is
	// silent.
	StatusListening Status = "listening"

	// StatusSpeaking means assistant audio is playing.
	StatusSpeaking Status = "speaking"

	// StatusError means the last session ended with a terminal failure. A new
	// session may be started from here.
	StatusError Status = "error"
)

// Active reports whether s belongs to a running session.
func (s Status) Active() bool {
	return s != StatusIdle && s != StatusError
}
