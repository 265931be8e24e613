// Package live defines the Provider interface for real-time conversational
// model backends.
//
// A live provider wraps a bidirectional streaming service that accepts raw
// microphone audio and answers with synthesised speech, incremental
// transcriptions of both sides, turn boundaries and tool calls. Examples include
// the Gemini Live BidiGenerateContent API.
//
// Inbound traffic is surfaced as a single ordered [Event] channel so that a
// consumer can process it in one loop, in arrival order.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"time"
)

// ToolDefinition declares a function the model may call.
type ToolDefinition struct {
	// Name is the unique function name.
	Name string

	// Description tells the model when to call the function.
	Description string

	// Parameters is a JSON-Schema object describing the arguments.
	Parameters map[string]any
}

// SessionConfig is the configuration sent during the connection handshake.
type SessionConfig struct {
	// Instructions is the system prompt.
	Instructions string

	// Voice is the provider-specific prebuilt voice name. Empty selects the
	// provider default.
	Voice string

	// Tools is the fixed set of functions offered for the whole session.
	Tools []ToolDefinition

	// TranscribeInput enables incremental transcription of the user's speech.
	TranscribeInput bool

	// TranscribeOutput enables incremental transcription of the model's speech.
	TranscribeOutput bool
}

// EventType discriminates [Event] values.
type EventType int

const (
	// EventOpen is delivered once when the handshake has been acknowledged and
	// the session accepts audio.
	EventOpen EventType = iota

	// EventAudio carries one decoded PCM16 chunk of model speech in Audio.
	EventAudio

	// EventInputTranscript carries a fragment of the user transcript in Text.
	EventInputTranscript

	// EventOutputTranscript carries a fragment of the model transcript in Text.
	EventOutputTranscript

	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete

	// EventToolCall carries one function call in ToolCall.
	EventToolCall

	// EventError reports a service-side error in Err. The session may still be
	// usable; a transport failure instead closes the event channel and is
	// reported by [Session.Err].
	EventError
)

// String returns a short name for logs.
func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventAudio:
		return "audio"
	case EventInputTranscript:
		return "input_transcript"
	case EventOutputTranscript:
		return "output_transcript"
	case EventTurnComplete:
		return "turn_complete"
	case EventToolCall:
		return "tool_call"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	// ID correlates the call with its response.
	ID string

	// Name is the declared function name.
	Name string

	// Args holds the decoded JSON arguments.
	Args map[string]any
}

// Event is one inbound occurrence on a [Session].
type Event struct {
	Type     EventType
	Audio    []byte
	Text     string
	ToolCall *ToolCall
	Err      error
	Time     time.Time
}

// Session is an open live connection.
type Session interface {
	// SendAudio streams one PCM16 mono chunk at the provider's input rate.
	// Sends are fire-and-forget; an error means the chunk was not written.
	SendAudio(pcm []byte) error

	// SendToolResponse acknowledges a tool call with a structured result.
	SendToolResponse(id, name string, response map[string]any) error

	// Events returns the ordered inbound event channel. It is closed when the
	// session ends for any reason.
	Events() <-chan Event

	// Err returns the transport error that ended the session, or nil if the
	// session is still running or was closed deliberately.
	Err() error

	// Close terminates the session. Idempotent.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect dials the service and sends the handshake. ctx governs the dial
	// only; the session lives until Close or a transport failure.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
