// Package gate owns the signed-in state of a single visitor.
//
// A Gate is the only writer of its Session. Readers take snapshots or
// subscribe; the three commands (Login, Register, Logout) and Probe are the
// only mutations, and at most one of them runs at a time.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/ports"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

const defaultCallTimeout = 10 * time.Second

const (
	cmdProbe    = "probe"
	cmdLogin    = "login"
	cmdRegister = "register"
	cmdLogout   = "logout"
)

// Gate is the per-visitor session owner.
type Gate struct {
	client  ports.IdentityClient
	timeout time.Duration
	log     zerolog.Logger

	mu           sync.Mutex
	session      domain.Session
	token        string
	probePending bool
	settled      chan struct{} // closed when the in-flight command resolves
	subs         map[int]func(domain.Session)
	nextSub      int
}

// New returns a Gate whose initial probe is pending: the snapshot reports
// IsLoading until Probe has run. seedToken is a previously issued identity
// token (may be empty for a first-time visitor).
func New(client ports.IdentityClient, seedToken string, timeout time.Duration, log zerolog.Logger) *Gate {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Gate{
		client:       client,
		timeout:      timeout,
		log:          log,
		session:      domain.Session{IsLoading: true},
		token:        seedToken,
		probePending: true,
		settled:      make(chan struct{}),
		subs:         make(map[int]func(domain.Session)),
	}
}

// Snapshot returns the current session state.
func (g *Gate) Snapshot() domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Token returns the identity token backing the current session, if any.
func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Subscribe registers fn to receive every snapshot published after a state
// change. fn runs on the goroutine that completed the change and must not call
// back into a command. The returned func removes the subscription.
func (g *Gate) Subscribe(fn func(domain.Session)) (cancel func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// WaitSettled blocks until no command is in flight or ctx is done, and returns
// the snapshot at that point.
func (g *Gate) WaitSettled(ctx context.Context) domain.Session {
	g.mu.Lock()
	ch := g.settled
	g.mu.Unlock()
	if ch == nil {
		return g.Snapshot()
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return g.Snapshot()
}

// Probe asks the identity service whether the stored token is still a valid
// session. It runs the pending initial probe, or re-probes when idle. Probe
// always leaves IsLoading false, whatever the outcome.
func (g *Gate) Probe(ctx context.Context) domain.Session {
	token, err := g.begin(cmdProbe)
	if err != nil {
		// A command is already running; its resolution is the answer.
		return g.WaitSettled(ctx)
	}
	start := time.Now()

	if token == "" {
		g.finish(cmdProbe, start, nil, func(s *domain.Session) {
			s.CurrentUser = nil
			s.LastError = nil
		})
		return g.Snapshot()
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	user, err := g.client.Probe(callCtx, token)

	switch {
	case err == nil:
		g.finish(cmdProbe, start, nil, func(s *domain.Session) {
			s.CurrentUser = user
			s.LastError = nil
		})
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		// Expired or revoked: reset to anonymous and forget the token.
		g.finish(cmdProbe, start, nil, func(s *domain.Session) {
			s.CurrentUser = nil
			s.LastError = nil
			g.token = ""
		})
	default:
		// Transient failure: anonymous for now, keep the token for a later re-probe.
		ae := classify(err)
		g.finish(cmdProbe, start, ae, func(s *domain.Session) {
			s.CurrentUser = nil
			s.LastError = ae
		})
	}
	return g.Snapshot()
}

// Login signs in with email and password. On failure CurrentUser is left as it
// was and the returned error is an *domain.AuthError.
func (g *Gate) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if _, err := g.begin(cmdLogin); err != nil {
		return nil, err
	}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	token, user, err := g.client.Login(callCtx, email, password)
	if err == nil {
		err = incompleteSession(cmdLogin, token, user)
	}
	if err != nil {
		ae := classify(err)
		g.finish(cmdLogin, start, ae, func(s *domain.Session) { s.LastError = ae })
		return nil, ae
	}

	g.finish(cmdLogin, start, nil, func(s *domain.Session) {
		s.CurrentUser = user
		s.LastError = nil
		g.token = token
	})
	return user, nil
}

// Register creates an account and signs it in. Either both happen or the
// session is left untouched.
func (g *Gate) Register(ctx context.Context, profile domain.Profile) (*domain.User, error) {
	if _, err := g.begin(cmdRegister); err != nil {
		return nil, err
	}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	token, user, err := g.client.Register(callCtx, profile)
	if err == nil {
		err = incompleteSession(cmdRegister, token, user)
	}
	if err != nil {
		ae := classify(err)
		g.finish(cmdRegister, start, ae, func(s *domain.Session) { s.LastError = ae })
		return nil, ae
	}

	g.finish(cmdRegister, start, nil, func(s *domain.Session) {
		s.CurrentUser = user
		s.LastError = nil
		g.token = token
	})
	return user, nil
}

// Logout ends the session. The local session is cleared once the identity
// service answers; if it fails, the local session is cleared anyway and the
// failure is returned so the caller can surface it.
func (g *Gate) Logout(ctx context.Context) error {
	token, err := g.begin(cmdLogout)
	if err != nil {
		return err
	}
	start := time.Now()

	var ae *domain.AuthError
	if token != "" {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err = g.client.Logout(callCtx, token)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrUnauthenticated) {
			ae = classify(err)
		}
	}

	g.finish(cmdLogout, start, ae, func(s *domain.Session) {
		s.CurrentUser = nil
		g.token = ""
		if ae != nil {
			s.LastError = ae
		} else {
			s.LastError = nil
		}
	})
	if ae != nil {
		return ae
	}
	return nil
}

// markReprobe schedules another probe when the last one failed on the
// network while a token is still held. On true the loading snapshot has been
// published and the caller must run Probe.
func (g *Gate) markReprobe() bool {
	g.mu.Lock()
	if g.session.IsLoading || g.session.CurrentUser != nil || g.token == "" ||
		!errors.Is(g.session.LastError, domain.ErrNetworkFailure) {
		g.mu.Unlock()
		return false
	}
	g.probePending = true
	g.session.IsLoading = true
	if g.settled == nil {
		g.settled = make(chan struct{})
	}
	snap := g.session
	subs := g.subscribers()
	g.mu.Unlock()

	publish(subs, snap)
	return true
}

// begin marks a command in flight and publishes the loading snapshot. It
// returns the token the command should use, or ErrCommandInFlight.
func (g *Gate) begin(cmd string) (string, error) {
	g.mu.Lock()
	initial := cmd == cmdProbe && g.probePending
	if g.session.IsLoading && !initial {
		g.mu.Unlock()
		metrics.AuthCommandsTotal.WithLabelValues(cmd, string(domain.KindBusy)).Inc()
		g.log.Debug().Str("command", cmd).Msg("rejected: command in flight")
		return "", domain.NewAuthError(domain.KindBusy, domain.ErrCommandInFlight)
	}
	g.probePending = false
	g.session.IsLoading = true
	if g.settled == nil {
		g.settled = make(chan struct{})
	}
	token := g.token
	snap := g.session
	subs := g.subscribers()
	g.mu.Unlock()

	publish(subs, snap)
	return token, nil
}

// finish applies mutate, clears IsLoading, wakes waiters, and notifies
// subscribers before returning.
func (g *Gate) finish(cmd string, start time.Time, failure *domain.AuthError, mutate func(*domain.Session)) {
	g.mu.Lock()
	mutate(&g.session)
	g.session.IsLoading = false
	if g.settled != nil {
		close(g.settled)
		g.settled = nil
	}
	snap := g.session
	subs := g.subscribers()
	g.mu.Unlock()

	outcome := "ok"
	if failure != nil {
		outcome = string(failure.Kind)
	}
	metrics.AuthCommandsTotal.WithLabelValues(cmd, outcome).Inc()
	metrics.AuthCommandDuration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())

	evt := g.log.Debug()
	if failure != nil && failure.Kind != domain.KindInvalidCredentials {
		evt = g.log.Warn().Err(failure)
	}
	evt.Str("command", cmd).
		Str("outcome", outcome).
		Bool("authenticated", snap.CurrentUser != nil).
		Msg("session command resolved")

	publish(subs, snap)
}

// subscribers copies the subscriber set; callers hold g.mu.
func (g *Gate) subscribers() []func(domain.Session) {
	out := make([]func(domain.Session), 0, len(g.subs))
	for _, fn := range g.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(domain.Session), snap domain.Session) {
	for _, fn := range subs {
		fn(snap)
	}
}

// classify turns a client error into an AuthError, treating any deadline or
// cancellation as a network failure.
func classify(err error) *domain.AuthError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewAuthError(domain.KindNetworkFailure, errors.Join(domain.ErrNetworkFailure, err))
	}
	return domain.AsAuthError(err)
}

// incompleteSession rejects a successful answer that does not carry both a
// token and the user it belongs to.
func incompleteSession(cmd, token string, user *domain.User) error {
	switch {
	case token == "":
		return domain.NewAuthError(domain.KindUnknown, fmt.Errorf("%s: identity service issued no token", cmd))
	case user == nil:
		return domain.NewAuthError(domain.KindUnknown, fmt.Errorf("%s: identity service returned no user", cmd))
	}
	return nil
}
