package resilience

import (
	"context"

	"github.com/MrWong99/aura/pkg/provider/search"
)

// SearchFallback implements [search.Provider] with automatic failover across
// multiple search backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
type SearchFallback struct {
	group *FallbackGroup[search.Provider]
}

// Compile-time interface assertion.
var _ search.Provider = (*SearchFallback)(nil)

// NewSearchFallback creates a [SearchFallback] with primary as the preferred
// backend.
func NewSearchFallback(primary search.Provider, primaryName string, cfg FallbackConfig) *SearchFallback {
	cfg.Kind = "search"
	return &SearchFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional search provider as a fallback.
func (f *SearchFallback) AddFallback(name string, provider search.Provider) {
	f.group.AddFallback(name, provider)
}

// Available reports whether any search backend currently accepts queries.
func (f *SearchFallback) Available() bool { return f.group.Available() }

// Search sends the query to the first healthy provider. When ctx expires
// mid-call the walk stops there and no breaker is charged.
func (f *SearchFallback) Search(ctx context.Context, query string) (*search.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p search.Provider) (*search.Result, error) {
		return p.Search(ctx, query)
	})
}
