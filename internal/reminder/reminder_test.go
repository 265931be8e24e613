package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/aura/internal/reminder"
)

var base = time.Date(2026, 5, 4, 17, 0, 0, 0, time.UTC)

// fixedClock returns a controllable clock starting at base.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newScheduler(t *testing.T, opts ...reminder.Option) (*reminder.Scheduler, *fixedClock) {
	t.Helper()
	clk := &fixedClock{now: base}
	return reminder.New(append([]reminder.Option{reminder.WithClock(clk.Now)}, opts...)...), clk
}

func TestSchedule_KeepsPendingSorted(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	t1, t2, t3 := base.Add(time.Minute), base.Add(2*time.Minute), base.Add(3*time.Minute)

	for _, r := range []struct {
		text string
		due  time.Time
	}{{"three", t3}, {"one", t1}, {"two", t2}} {
		if _, err := s.Schedule(r.text, r.due); err != nil {
			t.Fatalf("Schedule(%s): %v", r.text, err)
		}
	}

	pending := s.Pending()
	want := []string{"one", "two", "three"}
	if len(pending) != len(want) {
		t.Fatalf("pending = %d, want %d", len(pending), len(want))
	}
	for i, r := range pending {
		if r.Text != want[i] {
			t.Errorf("pending[%d] = %q, want %q", i, r.Text, want[i])
		}
		if r.ID == "" || r.Notified {
			t.Errorf("pending[%d] = %+v", i, r)
		}
	}
}

func TestSchedule_EqualDueKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	due := base.Add(time.Minute)
	_, _ = s.Schedule("first", due)
	_, _ = s.Schedule("second", due)

	p := s.Pending()
	if p[0].Text != "first" || p[1].Text != "second" {
		t.Errorf("order = %q, %q", p[0].Text, p[1].Text)
	}
}

func TestSchedule_RejectsPastAndPresent(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	for _, due := range []time.Time{base, base.Add(-time.Second)} {
		if _, err := s.Schedule("late", due); !errors.Is(err, reminder.ErrInvalidSchedule) {
			t.Errorf("Schedule(%v) err = %v, want ErrInvalidSchedule", due, err)
		}
	}
	if len(s.Pending()) != 0 {
		t.Error("no reminder should have been created")
	}
}

func TestTick_ExactlyOnce(t *testing.T) {
	t.Parallel()

	var fired []reminder.Reminder
	s, _ := newScheduler(t, reminder.WithOnDue(func(r reminder.Reminder) { fired = append(fired, r) }))
	due := base.Add(time.Minute)
	if _, err := s.Schedule("stretch", due); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Tick(due.Add(-time.Millisecond)); ok {
		t.Fatal("fired before due")
	}
	for i := range 5 {
		_, ok := s.Tick(due.Add(time.Duration(i) * time.Second))
		if ok != (i == 0) {
			t.Errorf("tick %d fired = %v", i, ok)
		}
	}

	if len(fired) != 1 || fired[0].Text != "stretch" || !fired[0].Notified {
		t.Fatalf("fired = %+v", fired)
	}
	if len(s.Pending()) != 0 {
		t.Error("notified reminder should not be pending")
	}
	if got, ok := s.Get(fired[0].ID); !ok || !got.Notified {
		t.Errorf("Get = %+v, %v; want the notified reminder retained", got, ok)
	}
}

func TestTick_OnePerTick(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	due := base.Add(time.Minute)
	_, _ = s.Schedule("b", due.Add(time.Second))
	_, _ = s.Schedule("a", due)

	now := due.Add(time.Hour)
	r1, ok1 := s.Tick(now)
	if !ok1 || r1.Text != "a" {
		t.Fatalf("first tick = %+v, %v; want a", r1, ok1)
	}
	if len(s.Pending()) != 1 {
		t.Fatalf("pending after one tick = %d, want 1", len(s.Pending()))
	}
	r2, ok2 := s.Tick(now)
	if !ok2 || r2.Text != "b" {
		t.Fatalf("second tick = %+v, %v; want b", r2, ok2)
	}
	if _, ok := s.Tick(now); ok {
		t.Error("third tick should fire nothing")
	}
}

func TestRun_FiresOnCadence(t *testing.T) {
	t.Parallel()

	fired := make(chan reminder.Reminder, 2)
	s, clk := newScheduler(t,
		reminder.WithTickInterval(5*time.Millisecond),
		reminder.WithOnDue(func(r reminder.Reminder) { fired <- r }),
	)
	if _, err := s.Schedule("tea", base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	clk.Set(base.Add(2 * time.Minute))
	select {
	case r := <-fired:
		if r.Text != "tea" {
			t.Errorf("fired %q", r.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reminder never fired")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestGetAndReset(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	r, _ := s.Schedule("x", base.Add(time.Minute))
	if got, ok := s.Get(r.ID); !ok || got.Text != "x" {
		t.Errorf("Get = %+v, %v", got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}
	s.Reset()
	if _, ok := s.Get(r.ID); ok || len(s.Pending()) != 0 {
		t.Error("Reset should remove all reminders")
	}
}
