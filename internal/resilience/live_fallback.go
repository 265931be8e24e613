package resilience

import (
	"context"

	"github.com/MrWong99/aura/pkg/provider/live"
)

// LiveFallback implements [live.Provider] with failover of the connection
// handshake. Only Connect is covered; once a session is established, transport
// failures are reported through the session itself.
type LiveFallback struct {
	group *FallbackGroup[live.Provider]
}

// Compile-time interface assertion.
var _ live.Provider = (*LiveFallback)(nil)

// NewLiveFallback creates a [LiveFallback] with primary as the preferred
// backend.
func NewLiveFallback(primary live.Provider, primaryName string, cfg FallbackConfig) *LiveFallback {
	cfg.Kind = "live"
	return &LiveFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional live provider as a fallback.
func (f *LiveFallback) AddFallback(name string, provider live.Provider) {
	f.group.AddFallback(name, provider)
}

// Available reports whether any live backend may currently be dialled.
func (f *LiveFallback) Available() bool { return f.group.Available() }

// Connect dials the first healthy provider.
func (f *LiveFallback) Connect(ctx context.Context, cfg live.SessionConfig) (live.Session, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p live.Provider) (live.Session, error) {
		return p.Connect(ctx, cfg)
	})
}
