// Package transcript accumulates the incremental transcriptions streamed by
// the live model and turns them into complete utterances at turn boundaries.
package transcript

import (
	"strings"
	"sync"
)

// Turn is the result of flushing an [Aggregator] at a turn boundary.
type Turn struct {
	// User is the trimmed user utterance, or "" if nothing was said.
	User string

	// Assistant is the trimmed assistant utterance, or "" if nothing was said
	// or the utterance was suppressed.
	Assistant string

	// AssistantSuppressed is true when the turn contained tool-call activity
	// and a non-empty assistant utterance was therefore dropped. Tool results
	// are surfaced through their own messages instead.
	AssistantSuppressed bool
}

// Aggregator holds the input (user) and output (assistant) buffers of the
// current turn.
//
// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	input    strings.Builder
	output   strings.Builder
	toolCall bool
}

// New returns an empty Aggregator.
func New() *Aggregator { return &Aggregator{} }

// AppendInput adds a fragment of the user transcription.
func (a *Aggregator) AppendInput(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.WriteString(fragment)
}

// AppendOutput adds a fragment of the assistant transcription.
func (a *Aggregator) AppendOutput(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.output.WriteString(fragment)
}

// LiveInput returns the user transcription accumulated so far in this turn.
func (a *Aggregator) LiveInput() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input.String()
}

// MarkToolCall records that the current turn triggered a tool call.
func (a *Aggregator) MarkToolCall() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolCall = true
}

// Flush returns the completed turn and clears both buffers and the tool-call
// mark.
func (a *Aggregator) Flush() Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := Turn{
		User:      strings.TrimSpace(a.input.String()),
		Assistant: strings.TrimSpace(a.output.String()),
	}
	if a.toolCall && t.Assistant != "" {
		t.Assistant = ""
		t.AssistantSuppressed = true
	}
	a.resetLocked()
	return t
}

// Reset discards everything accumulated so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Aggregator) resetLocked() {
	a.input.Reset()
	a.output.Reset()
	a.toolCall = false
}
