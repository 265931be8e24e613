// Package reminder implements the reminder scheduler: an ordered set of
// reminders polled on a fixed cadence, each notified exactly once.
//
// At most one reminder fires per tick, so several reminders due at the same
// moment surface one after another in ascending due order.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSchedule is returned when a due time is missing, unparseable or
// not in the future.
var ErrInvalidSchedule = errors.New("reminder: invalid schedule")

// DefaultTickInterval is the polling cadence used by [Scheduler.Run].
const DefaultTickInterval = time.Second

// Reminder is one scheduled notification.
type Reminder struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Due      time.Time `json:"due"`
	Notified bool      `json:"notified"`
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithClock overrides the time source used by Schedule and Run.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval sets the polling cadence of Run.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithOnDue registers fn to be called, outside the lock, for every reminder
// that fires.
func WithOnDue(fn func(Reminder)) Option {
	return func(s *Scheduler) { s.onDue = fn }
}

// Scheduler keeps reminders sorted ascending by due time.
//
// Scheduler is safe for concurrent use.
type Scheduler struct {
	now      func() time.Time
	interval time.Duration
	onDue    func(Reminder)

	mu        sync.Mutex
	reminders []Reminder
}

// New creates an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:      time.Now,
		interval: DefaultTickInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule inserts a reminder for text at due. due must lie strictly after
// the scheduler's current time.
func (s *Scheduler) Schedule(text string, due time.Time) (Reminder, error) {
	if now := s.now(); !due.After(now) {
		return Reminder{}, fmt.Errorf("%w: %s is not after %s", ErrInvalidSchedule,
			due.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	r := Reminder{ID: uuid.NewString(), Text: text, Due: due}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Equal due times keep insertion order.
	i := sort.Search(len(s.reminders), func(i int) bool { return s.reminders[i].Due.After(due) })
	s.reminders = append(s.reminders, Reminder{})
	copy(s.reminders[i+1:], s.reminders[i:])
	s.reminders[i] = r

	slog.Debug("reminder: scheduled", "id", r.ID, "due", due)
	return r, nil
}

// Tick fires the earliest pending reminder whose due time is at or before
// now. It fires at most one reminder per call and reports whether it did.
func (s *Scheduler) Tick(now time.Time) (Reminder, bool) {
	s.mu.Lock()
	idx := -1
	for i := range s.reminders {
		if s.reminders[i].Notified {
			continue
		}
		if !s.reminders[i].Due.After(now) {
			idx = i
		}
		// Pending reminders are sorted, so the first one decides.
		break
	}
	if idx < 0 {
		s.mu.Unlock()
		return Reminder{}, false
	}
	s.reminders[idx].Notified = true
	r := s.reminders[idx]
	s.mu.Unlock()

	slog.Info("reminder: due", "id", r.ID, "text", r.Text)
	if s.onDue != nil {
		s.onDue(r)
	}
	return r, true
}

// Run ticks on the configured cadence until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Pending returns the reminders not yet notified, sorted by due time.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if !r.Notified {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the reminder with the given ID.
func (s *Scheduler) Get(id string) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			return r, true
		}
	}
	return Reminder{}, false
}

// Reset removes every reminder.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = nil
}
