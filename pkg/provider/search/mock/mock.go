// Package mock provides a test double for the search.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: &search.Result{Answer: "42"}}
//	res, _ := p.Search(ctx, "meaning of life")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/aura/pkg/provider/search"
)

// Provider is a mock implementation of search.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Search when Err is nil.
	Result *search.Result

	// Err, if non-nil, is returned by Search.
	Err error

	// Hook, if set, runs before Search returns, outside the lock. Tests use it
	// to block the call or change state mid-flight.
	Hook func(ctx context.Context, query string)

	// Queries records the query of every Search call in order.
	Queries []string
}

// Search records the query and returns Result or Err.
func (p *Provider) Search(ctx context.Context, query string) (*search.Result, error) {
	p.mu.Lock()
	p.Queries = append(p.Queries, query)
	hook := p.Hook
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, query)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result == nil {
		return &search.Result{}, nil
	}
	return p.Result, nil
}

// CallCount returns the number of Search calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Queries)
}

var _ search.Provider = (*Provider)(nil)
