// Package conversation holds the user-visible message log of the assistant.
//
// Messages are immutable once appended. The [Log] is append-only and is only
// emptied by an explicit [Log.Reset].
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// SearchSource is a grounding reference attached to an assistant message.
type SearchSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one entry of the conversation log.
type Message struct {
	ID        string         `json:"id"`
	Sender    Sender         `json:"sender"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Sources   []SearchSource `json:"sources,omitempty"`
}

// DedupeSources collapses sources sharing a URI. Each URI keeps the position
// of its first occurrence and the title of its last. Sources with an empty URI
// or title are dropped.
func DedupeSources(in []SearchSource) []SearchSource {
	if len(in) == 0 {
		return nil
	}
	index := make(map[string]int, len(in))
	out := make([]SearchSource, 0, len(in))
	for _, s := range in {
		if s.URI == "" || s.Title == "" {
			continue
		}
		if i, dup := index[s.URI]; dup {
			out[i] = s
			continue
		}
		index[s.URI] = len(out)
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Option configures a [Log].
type Option func(*Log)

// WithClock overrides the timestamp source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithOnAppend registers fn to be called after every append, outside the lock.
func WithOnAppend(fn func(Message)) Option {
	return func(l *Log) { l.onAppend = fn }
}

// Log is an ordered, append-only list of messages. It is safe for concurrent
// use.
type Log struct {
	now      func() time.Time
	onAppend func(Message)

	mu       sync.Mutex
	messages []Message
}

// NewLog creates an empty log.
func NewLog(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append creates a message with a fresh ID and timestamp and adds it to the
// end of the log. The sources slice is copied.
func (l *Log) Append(sender Sender, text string, sources ...SearchSource) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: l.now(),
	}
	if len(sources) > 0 {
		msg.Sources = append([]SearchSource(nil), sources...)
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()

	if l.onAppend != nil {
		l.onAppend(msg)
	}
	return msg
}

// Messages returns a snapshot of the log in insertion order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Reset removes every message.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}
