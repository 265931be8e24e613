// Package resilience keeps the assistant usable while its remote
// collaborators (the live model and web search) misbehave.
//
// [CircuitBreaker] stops calling a backend after repeated failures and probes
// it again once a cool-down has passed. [FallbackGroup] chains several
// backends of one kind behind per-entry breakers; [LiveFallback] and
// [SearchFallback] apply it to the two provider interfaces.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while calls are
// being rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probe calls through. A failed probe
	// re-opens the breaker; HalfOpenMax successful probes close it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values take defaults.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and transition callbacks.
	Name string

	// MaxFailures is the run of consecutive failures that opens the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is the cool-down before an open breaker admits probes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget of the half-open state. Default: 3.
	HalfOpenMax int

	// Clock defaults to time.Now.
	Clock func() time.Time

	// OnStateChange, if set, is called after every transition, outside the
	// breaker's lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker is a three-state breaker guarding one backend. It is safe
// for concurrent use.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// transition is a state change waiting to be reported once mu is released.
type transition struct {
	from, to State
}

// NewCircuitBreaker creates a closed [CircuitBreaker].
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		now:           cfg.Clock,
		onStateChange: cfg.OnStateChange,
		state:         StateClosed,
	}
}

// Execute runs fn unless the breaker rejects the call, in which case fn is
// not called and [ErrCircuitOpen] is returned. fn's error is returned as is.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	var changes []transition

	cb.mu.Lock()
	if cb.state == StateOpen && cb.cooledDown() {
		changes = append(changes, cb.setState(StateHalfOpen))
	}
	if !cb.admit() {
		cb.mu.Unlock()
		cb.report(changes)
		return ErrCircuitOpen
	}
	probe := cb.state == StateHalfOpen
	if probe {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	cb.report(changes)

	err := fn()

	cb.mu.Lock()
	var t transition
	var changed bool
	if err != nil {
		t, changed = cb.failed(probe)
	} else {
		t, changed = cb.succeeded(probe)
	}
	cb.mu.Unlock()
	if changed {
		cb.report([]transition{t})
	}
	return err
}

// State returns the breaker's state. An open breaker past its cool-down
// reports [StateHalfOpen]; the switch itself happens on the next Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooledDown() {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	if cb.state != StateClosed {
		changes = append(changes, cb.setState(StateClosed))
	}
	cb.consecutiveFail = 0
	cb.mu.Unlock()
	cb.report(changes)
}

// ── Internals (mu held unless noted) ─────────────────────────────────────────

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.lastFailure) >= cb.resetTimeout
}

func (cb *CircuitBreaker) admit() bool {
	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		return cb.halfOpenCalls < cb.halfOpenMax
	default:
		return true
	}
}

func (cb *CircuitBreaker) failed(probe bool) (transition, bool) {
	cb.lastFailure = cb.now()
	if probe {
		cb.halfOpenFails++
		cb.consecutiveFail = cb.maxFailures
		if cb.state == StateHalfOpen {
			return cb.setState(StateOpen), true
		}
		return transition{}, false
	}
	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
		return cb.setState(StateOpen), true
	}
	return transition{}, false
}

func (cb *CircuitBreaker) succeeded(probe bool) (transition, bool) {
	if !probe {
		cb.consecutiveFail = 0
		return transition{}, false
	}
	if cb.state == StateHalfOpen && cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
		cb.consecutiveFail = 0
		return cb.setState(StateClosed), true
	}
	return transition{}, false
}

// setState switches state and resets the probe counters.
func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	return t
}

// report logs changes and forwards them to OnStateChange. mu must not be held.
func (cb *CircuitBreaker) report(changes []transition) {
	for _, t := range changes {
		level := slog.LevelInfo
		if t.to == StateOpen {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "circuit breaker state changed",
			"name", cb.name, "from", t.from.String(), "to", t.to.String())
		if cb.onStateChange != nil {
			cb.onStateChange(cb.name, t.from, t.to)
		}
	}
}
