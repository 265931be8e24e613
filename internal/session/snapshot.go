package session

import (
	"github.com/MrWong99/aura/internal/conversation"
	"github.com/MrWong99/aura/internal/reminder"
)

// Snapshot is a read-only view of everything the presentation layer shows.
type Snapshot struct {
	Status         Status                 `json:"status"`
	Messages       []conversation.Message `json:"messages"`
	Reminders      []reminder.Reminder    `json:"reminders"`
	Notification   *reminder.Reminder     `json:"notification,omitempty"`
	LiveTranscript string                 `json:"liveTranscript"`
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Status:         c.status,
		LiveTranscript: c.turns.LiveInput(),
	}
	if c.notification != nil {
		n := *c.notification
		snap.Notification = &n
	}
	c.mu.Unlock()

	snap.Messages = c.log.Messages()
	snap.Reminders = c.reminders.Pending()
	return snap
}

// Changes subscribes to state changes. The returned channel receives a value
// whenever the snapshot may have changed; bursts are coalesced. Call cancel to
// unsubscribe.
func (c *Controller) Changes() (ch <-chan struct{}, cancel func()) {
	sub := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subs[sub] = struct{}{}
	c.subMu.Unlock()
	return sub, func() {
		c.subMu.Lock()
		delete(c.subs, sub)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for sub := range c.subs {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}
