package gate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
)

func TestRegistry_AcquireCreatesOncePerVisitor(t *testing.T) {
	client := &stubClient{
		probeFn: func(_ context.Context, token string) (*domain.User, error) {
			if token == "tok-a" {
				return alice, nil
			}
			return nil, domain.ErrUnauthenticated
		},
	}
	reg := NewRegistry(client, Config{CallTimeout: time.Second}, zerolog.Nop())

	g1, created := reg.Acquire("v1", "tok-a")
	if !created {
		t.Fatalf("first acquire must create")
	}
	g2, created := reg.Acquire("v1", "ignored")
	if created || g1 != g2 {
		t.Fatalf("second acquire must return the same gate")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 gate, got %d", reg.Len())
	}

	s := g1.WaitSettled(context.Background())
	if s.CurrentUser == nil || s.CurrentUser.ID != alice.ID {
		t.Fatalf("background probe must restore the seeded session, got %+v", s)
	}
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	reg := NewRegistry(&stubClient{}, Config{IdleTTL: time.Minute}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	old, _ := reg.Acquire("old", "")
	old.WaitSettled(context.Background())

	now = now.Add(2 * time.Minute)
	fresh, _ := reg.Acquire("fresh", "")
	fresh.WaitSettled(context.Background())

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := reg.Lookup("old"); ok {
		t.Fatalf("idle gate must be gone")
	}
	if _, ok := reg.Lookup("fresh"); !ok {
		t.Fatalf("recent gate must be kept")
	}
}

func TestRegistry_ReprobesAfterNetworkFailure(t *testing.T) {
	var calls int32
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, domain.ErrNetworkFailure
			}
			return alice, nil
		},
	}
	reg := NewRegistry(client, Config{CallTimeout: time.Second}, zerolog.Nop())

	g, _ := reg.Acquire("v1", "tok-a")
	if s := g.WaitSettled(context.Background()); s.CurrentUser != nil {
		t.Fatalf("first probe failed, visitor must be anonymous, got %+v", s)
	}

	again, created := reg.Acquire("v1", "tok-a")
	if created || again != g {
		t.Fatalf("returning visitor must keep its gate")
	}
	if !g.Snapshot().IsLoading {
		t.Fatalf("returning visitor must see the retry as loading, not as anonymous")
	}
	s := g.WaitSettled(context.Background())
	if s.CurrentUser == nil || s.CurrentUser.ID != alice.ID {
		t.Fatalf("retry must restore the session, got %+v", s)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 probes, got %d", n)
	}

	reg.Acquire("v1", "tok-a")
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("settled session must not be probed again, got %d probes", n)
	}
}

func TestRegistry_ReprobeIsRateLimited(t *testing.T) {
	var calls int32
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) {
			atomic.AddInt32(&calls, 1)
			return nil, domain.ErrNetworkFailure
		},
	}
	reg := NewRegistry(client, Config{CallTimeout: time.Second, ReprobeEvery: time.Minute}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	g, _ := reg.Acquire("v1", "tok-a")
	g.WaitSettled(context.Background())

	reg.Acquire("v1", "tok-a")
	g.WaitSettled(context.Background())
	reg.Acquire("v1", "tok-a")
	g.WaitSettled(context.Background())
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected one retry inside the window, got %d probes", n)
	}

	now = now.Add(time.Minute)
	reg.Acquire("v1", "tok-a")
	g.WaitSettled(context.Background())
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected a retry after the window, got %d probes", n)
	}
	if g.Token() != "tok-a" {
		t.Fatalf("network failures must not drop the token")
	}
}
