package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stub identity client
// ---------------------------------------------------------------------------

type stubClient struct {
	probeFn    func(ctx context.Context, token string) (*domain.User, error)
	loginFn    func(ctx context.Context, email, password string) (string, *domain.User, error)
	registerFn func(ctx context.Context, p domain.Profile) (string, *domain.User, error)
	logoutFn   func(ctx context.Context, token string) error
}

func (s *stubClient) Probe(ctx context.Context, token string) (*domain.User, error) {
	return s.probeFn(ctx, token)
}

func (s *stubClient) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubClient) Register(ctx context.Context, p domain.Profile) (string, *domain.User, error) {
	return s.registerFn(ctx, p)
}

func (s *stubClient) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

var alice = &domain.User{ID: "u1", Email: "a@b.com", FirstName: "Alice", LastName: "Liddell"}

// settledGate returns an anonymous gate whose initial probe already ran.
func settledGate(t *testing.T, client *stubClient) *Gate {
	t.Helper()
	g := New(client, "", time.Second, zerolog.Nop())
	if s := g.Probe(context.Background()); s.IsLoading || s.CurrentUser != nil {
		t.Fatalf("expected settled anonymous session, got %+v", s)
	}
	return g
}

// ---------------------------------------------------------------------------
// Probe
// ---------------------------------------------------------------------------

func TestGate_NewIsLoadingUntilProbe(t *testing.T) {
	g := New(&stubClient{}, "", time.Second, zerolog.Nop())
	if !g.Snapshot().IsLoading {
		t.Fatalf("new gate must report IsLoading before its probe")
	}

	s := g.Probe(context.Background())
	if s.IsLoading {
		t.Fatalf("probe must clear IsLoading")
	}
	if s.CurrentUser != nil {
		t.Fatalf("no token must mean anonymous, got %+v", s.CurrentUser)
	}
}

func TestGate_ProbeRestoresSession(t *testing.T) {
	client := &stubClient{
		probeFn: func(_ context.Context, token string) (*domain.User, error) {
			if token != "tok-1" {
				t.Fatalf("unexpected token %q", token)
			}
			return alice, nil
		},
	}
	g := New(client, "tok-1", time.Second, zerolog.Nop())

	s := g.Probe(context.Background())
	if s.CurrentUser == nil || s.CurrentUser.ID != "u1" {
		t.Fatalf("expected alice, got %+v", s.CurrentUser)
	}
	if g.Token() != "tok-1" {
		t.Fatalf("token must be kept, got %q", g.Token())
	}
}

func TestGate_ProbeExpiredResetsToken(t *testing.T) {
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) {
			return nil, domain.ErrUnauthenticated
		},
	}
	g := New(client, "stale", time.Second, zerolog.Nop())

	s := g.Probe(context.Background())
	if s.IsLoading || s.CurrentUser != nil || s.LastError != nil {
		t.Fatalf("expected clean anonymous session, got %+v", s)
	}
	if g.Token() != "" {
		t.Fatalf("expired token must be dropped")
	}
}

func TestGate_ProbeNetworkFailureKeepsToken(t *testing.T) {
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) {
			return nil, domain.ErrNetworkFailure
		},
	}
	g := New(client, "tok-1", time.Second, zerolog.Nop())

	s := g.Probe(context.Background())
	if s.IsLoading || s.CurrentUser != nil {
		t.Fatalf("expected settled anonymous session, got %+v", s)
	}
	if !errors.Is(s.LastError, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", s.LastError)
	}
	if g.Token() != "tok-1" {
		t.Fatalf("token must survive a transient failure")
	}
}

// ---------------------------------------------------------------------------
// Login / Register
// ---------------------------------------------------------------------------

func TestGate_LoginSuccess(t *testing.T) {
	client := &stubClient{
		loginFn: func(_ context.Context, email, password string) (string, *domain.User, error) {
			if email != "a@b.com" || password != "x" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return "tok-2", alice, nil
		},
	}
	g := settledGate(t, client)

	var seen []domain.Session
	cancel := g.Subscribe(func(s domain.Session) { seen = append(seen, s) })
	defer cancel()

	user, err := g.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u1" || g.Snapshot().CurrentUser.ID != "u1" {
		t.Fatalf("session not populated")
	}
	if g.Token() != "tok-2" {
		t.Fatalf("expected token tok-2, got %q", g.Token())
	}
	if len(seen) != 2 || !seen[0].IsLoading || seen[1].IsLoading || seen[1].CurrentUser == nil {
		t.Fatalf("expected loading then authenticated notifications, got %+v", seen)
	}
}

func TestGate_LoginInvalidCredentials(t *testing.T) {
	client := &stubClient{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.NewAuthError(domain.KindInvalidCredentials, domain.ErrInvalidCredentials)
		},
	}
	g := settledGate(t, client)

	user, err := g.Login(context.Background(), "a@b.com", "wrong")
	if user != nil {
		t.Fatalf("expected no user")
	}
	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Kind != domain.KindInvalidCredentials {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}
	s := g.Snapshot()
	if s.CurrentUser != nil || s.IsLoading {
		t.Fatalf("session must stay anonymous and settled, got %+v", s)
	}
	if !errors.Is(s.LastError, domain.ErrInvalidCredentials) {
		t.Fatalf("LastError not set: %v", s.LastError)
	}
}

func TestGate_LoginFailureKeepsExistingUser(t *testing.T) {
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) { return alice, nil },
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrNetworkFailure
		},
	}
	g := New(client, "tok-1", time.Second, zerolog.Nop())
	g.Probe(context.Background())

	if _, err := g.Login(context.Background(), "b@c.com", "y"); !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if g.Snapshot().CurrentUser != alice {
		t.Fatalf("failed login must not change CurrentUser")
	}
}

func TestGate_RegisterConflict(t *testing.T) {
	client := &stubClient{
		registerFn: func(_ context.Context, p domain.Profile) (string, *domain.User, error) {
			return "", nil, domain.ErrUserExists
		},
	}
	g := settledGate(t, client)

	_, err := g.Register(context.Background(), domain.Profile{Email: "a@b.com", Password: "x", FirstName: "A", LastName: "B"})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected AccountConflict, got %v", err)
	}
	if g.Snapshot().CurrentUser != nil {
		t.Fatalf("failed register must not sign in")
	}
}

func TestGate_RegisterSuccess(t *testing.T) {
	client := &stubClient{
		registerFn: func(_ context.Context, p domain.Profile) (string, *domain.User, error) {
			return "tok-3", &domain.User{ID: "u9", Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}, nil
		},
	}
	g := settledGate(t, client)

	user, err := g.Register(context.Background(), domain.Profile{Email: "n@b.com", Password: "x", FirstName: "N", LastName: "B"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID != "u9" || !g.Snapshot().Authenticated() || g.Token() != "tok-3" {
		t.Fatalf("register must sign the new user in")
	}
}

func TestGate_IncompleteAnswerIsNotASession(t *testing.T) {
	tests := []struct {
		name  string
		token string
		user  *domain.User
	}{
		{"no user", "tok", nil},
		{"no token", "", alice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{
				loginFn: func(context.Context, string, string) (string, *domain.User, error) {
					return tt.token, tt.user, nil
				},
				registerFn: func(context.Context, domain.Profile) (string, *domain.User, error) {
					return tt.token, tt.user, nil
				},
			}
			g := settledGate(t, client)

			user, err := g.Login(context.Background(), "a@b.com", "x")
			if err == nil || user != nil {
				t.Fatalf("login: expected failure, got user=%+v err=%v", user, err)
			}
			if kind := domain.AsAuthError(err).Kind; kind != domain.KindUnknown {
				t.Fatalf("login: expected unknown kind, got %s", kind)
			}

			user, err = g.Register(context.Background(), domain.Profile{Email: "a@b.com", Password: "x", FirstName: "A", LastName: "B"})
			if err == nil || user != nil {
				t.Fatalf("register: expected failure, got user=%+v err=%v", user, err)
			}

			s := g.Snapshot()
			if s.CurrentUser != nil || s.IsLoading || g.Token() != "" {
				t.Fatalf("session must stay anonymous without a token, got %+v token=%q", s, g.Token())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Serialisation and timeouts
// ---------------------------------------------------------------------------

func TestGate_RejectsCommandWhileLoading(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &stubClient{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			close(entered)
			<-release
			return "tok", alice, nil
		},
		logoutFn: func(context.Context, string) error {
			t.Fatalf("logout must not reach the identity service")
			return nil
		},
	}
	g := settledGate(t, client)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = g.Login(context.Background(), "a@b.com", "x")
	}()
	<-entered

	if err := g.Logout(context.Background()); !errors.Is(err, domain.ErrCommandInFlight) {
		t.Fatalf("expected ErrCommandInFlight, got %v", err)
	}

	close(release)
	wg.Wait()
	if !g.Snapshot().Authenticated() {
		t.Fatalf("first command must win")
	}
}

func TestGate_RejectsLoginBeforeInitialProbe(t *testing.T) {
	g := New(&stubClient{}, "", time.Second, zerolog.Nop())
	if _, err := g.Login(context.Background(), "a@b.com", "x"); !errors.Is(err, domain.ErrCommandInFlight) {
		t.Fatalf("expected ErrCommandInFlight, got %v", err)
	}
}

func TestGate_TimeoutResolvesToNetworkFailure(t *testing.T) {
	client := &stubClient{
		loginFn: func(ctx context.Context, _, _ string) (string, *domain.User, error) {
			<-ctx.Done()
			return "", nil, ctx.Err()
		},
	}
	g := New(client, "", 20*time.Millisecond, zerolog.Nop())
	g.Probe(context.Background())

	_, err := g.Login(context.Background(), "a@b.com", "x")
	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Kind != domain.KindNetworkFailure {
		t.Fatalf("expected NetworkFailure, got %v", err)
	}
	if g.Snapshot().IsLoading {
		t.Fatalf("timeout must not leave the gate loading")
	}
}

func TestGate_WaitSettled(t *testing.T) {
	release := make(chan struct{})
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) {
			<-release
			return alice, nil
		},
	}
	g := New(client, "tok", time.Second, zerolog.Nop())
	go g.Probe(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if s := g.WaitSettled(ctx); !s.IsLoading {
		t.Fatalf("expected still loading after short wait")
	}

	close(release)
	if s := g.WaitSettled(context.Background()); s.IsLoading || s.CurrentUser == nil {
		t.Fatalf("expected settled authenticated session, got %+v", s)
	}
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestGate_LogoutClearsSession(t *testing.T) {
	client := &stubClient{
		probeFn: func(context.Context, string) (*domain.User, error) { return alice, nil },
		logoutFn: func(_ context.Context, token string) error {
			if token != "tok-1" {
				t.Fatalf("unexpected token %q", token)
			}
			return nil
		},
	}
	g := New(client, "tok-1", time.Second, zerolog.Nop())
	g.Probe(context.Background())

	if err := g.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	s := g.Snapshot()
	if s.CurrentUser != nil || s.IsLoading || g.Token() != "" {
		t.Fatalf("expected cleared session, got %+v token=%q", s, g.Token())
	}
}

func TestGate_LogoutFailureStillClears(t *testing.T) {
	client := &stubClient{
		probeFn:  func(context.Context, string) (*domain.User, error) { return alice, nil },
		logoutFn: func(context.Context, string) error { return domain.ErrNetworkFailure },
	}
	g := New(client, "tok-1", time.Second, zerolog.Nop())
	g.Probe(context.Background())

	err := g.Logout(context.Background())
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected the failure to be reported, got %v", err)
	}
	if g.Snapshot().CurrentUser != nil || g.Token() != "" {
		t.Fatalf("local session must be cleared even when logout fails")
	}
}

func TestGate_SubscribeCancel(t *testing.T) {
	g := settledGate(t, &stubClient{})
	calls := 0
	cancel := g.Subscribe(func(domain.Session) { calls++ })
	cancel()
	cancel()

	g.Probe(context.Background())
	if calls != 0 {
		t.Fatalf("cancelled subscriber was notified %d times", calls)
	}
}
