package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result, either because each one failed or because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// Kind labels the provider role in log records ("live", "search").
	Kind string

	// CircuitBreaker is the template for the breaker created per entry. Its
	// Name is overwritten with the entry name.
	CircuitBreaker CircuitBreakerConfig
}

// EntryStatus reports the breaker state of one entry.
type EntryStatus struct {
	Name  string
	State State
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered chain of providers of the same kind. Calls go to
// the first entry whose breaker admits them and walk down the chain on failure.
//
// Entries are registered during startup; after that the group is safe for
// concurrent use.
type FallbackGroup[T any] struct {
	kind    string
	cfg     CircuitBreakerConfig
	entries []fallbackEntry[T]
}

// NewFallbackGroup creates a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	kind := cfg.Kind
	if kind == "" {
		kind = "provider"
	}
	fg := &FallbackGroup[T]{kind: kind, cfg: cfg.CircuitBreaker}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry to the end of the chain.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := fg.cfg
	cb.Name = fg.kind + "/" + name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cb),
	})
}

// Status returns the breaker state of every entry in chain order.
func (fg *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, len(fg.entries))
	for i := range fg.entries {
		out[i] = EntryStatus{Name: fg.entries[i].name, State: fg.entries[i].breaker.State()}
	}
	return out
}

// Available reports whether at least one entry has a breaker that is not open.
func (fg *FallbackGroup[T]) Available() bool {
	for i := range fg.entries {
		if fg.entries[i].breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Execute calls fn on each entry in order until one returns nil.
//
// A failure that coincides with ctx being done is the caller giving up, not
// the provider failing: it is not charged to the breaker and the walk stops
// with ctx.Err().
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	var lastErr error
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := &fg.entries[i]

		var callErr error
		err := entry.breaker.Execute(func() error {
			callErr = fn(ctx, entry.value)
			if callErr != nil && ctx.Err() != nil {
				return nil
			}
			return callErr
		})
		switch {
		case err == nil && callErr == nil:
			if i > 0 {
				slog.Info("provider failover succeeded", "kind", fg.kind, "provider", entry.name, "position", i)
			}
			return nil
		case err == nil:
			return ctx.Err()
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "kind", fg.kind, "provider", entry.name)
		default:
			slog.Warn("provider failed", "kind", fg.kind, "provider", entry.name, "err", err)
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s: %w", ErrAllFailed, fg.kind, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a value.
func ExecuteWithResult[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var result R
	err := fg.Execute(ctx, func(ctx context.Context, v T) error {
		r, err := fn(ctx, v)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
