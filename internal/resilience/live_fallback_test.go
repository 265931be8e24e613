package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/aura/pkg/provider/live"
	livemock "github.com/MrWong99/aura/pkg/provider/live/mock"
)

func TestLiveFallback_Connect_Failover(t *testing.T) {
	primary := &livemock.Provider{ConnectErr: errors.New("dial refused")}
	secondary := &livemock.Provider{}

	fb := NewLiveFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	sess, err := fb.Connect(context.Background(), live.SessionConfig{Instructions: "be brief"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Close()

	if primary.ConnectCount() != 1 || secondary.ConnectCount() != 1 {
		t.Fatalf("connect counts = %d/%d, want 1/1", primary.ConnectCount(), secondary.ConnectCount())
	}
	if got := secondary.ConnectCalls[0].Cfg.Instructions; got != "be brief" {
		t.Errorf("config not forwarded: %q", got)
	}
}

func TestLiveFallback_Connect_AllFail(t *testing.T) {
	fb := NewLiveFallback(&livemock.Provider{ConnectErr: errors.New("down")}, "primary", FallbackConfig{})

	if _, err := fb.Connect(context.Background(), live.SessionConfig{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
