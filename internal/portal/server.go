// Package portal is the server-rendered web front. Every GET is resolved
// through the routing table and guarded by the visitor's session gate.
package portal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/gate"
	"github.com/healthtracker/portal/internal/core/routing"
	"github.com/healthtracker/portal/internal/infrastructure/identity"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

const (
	defaultProbeGrace  = 1500 * time.Millisecond
	defaultRememberFor = 30 * 24 * time.Hour
)

type Options struct {
	Table *routing.Table
	Gates *gate.Registry
	// ProbeGrace is how long a request waits for a pending probe before
	// the loading page is shown instead.
	ProbeGrace   time.Duration
	RememberFor  time.Duration
	CookieSecure bool
	Log          zerolog.Logger
}

type Server struct {
	table        *routing.Table
	gates        *gate.Registry
	views        *Views
	probeGrace   time.Duration
	rememberFor  time.Duration
	cookieSecure bool
	log          zerolog.Logger
}

func New(opts Options) (*Server, error) {
	views, err := NewViews()
	if err != nil {
		return nil, err
	}
	if opts.Table == nil {
		opts.Table = routing.DefaultTable()
	}
	if opts.Gates == nil {
		return nil, errors.New("portal: gate registry is required")
	}
	if opts.ProbeGrace <= 0 {
		opts.ProbeGrace = defaultProbeGrace
	}
	if opts.RememberFor <= 0 {
		opts.RememberFor = defaultRememberFor
	}
	return &Server{
		table:        opts.Table,
		gates:        opts.Gates,
		views:        views,
		probeGrace:   opts.ProbeGrace,
		rememberFor:  opts.RememberFor,
		cookieSecure: opts.CookieSecure,
		log:          opts.Log,
	}, nil
}

// Register mounts the portal on e. Routes e already has, such as the
// health probes, keep precedence over the catch-all page dispatcher.
func (s *Server) Register(e *echo.Echo) {
	e.Renderer = s.views
	e.HTTPErrorHandler = s.errorHandler

	e.POST("/auth/login", s.login)
	e.POST("/auth/register", s.register)
	e.POST("/auth/logout", s.logout)
	e.POST("/auth/validate/:form", s.validate)

	e.GET("/*", s.dispatch)
	e.HEAD("/*", s.dispatch)
}

// dispatch renders whatever page the path resolves to.
func (s *Server) dispatch(c echo.Context) error {
	match := s.table.Resolve(c.Request().URL.EscapedPath())
	mount := routing.NewMount(match.Route)

	var session domain.Session
	var decision routing.Decision
	if g := s.visitor(c, false); g != nil {
		if match.Route.Target == routing.TargetAuth {
			// The sign-in page needs to know whether to send the visitor home.
			session = s.await(c.Request().Context(), g, settled)
			decision = mount.Observe(session)
		} else {
			session, decision = s.follow(c.Request().Context(), g, mount)
		}
		s.syncToken(c, g)
	} else {
		decision = mount.Observe(session)
	}
	metrics.GuardDecisionsTotal.WithLabelValues(string(match.Route.Visibility), string(decision)).Inc()

	switch decision {
	case routing.Loading:
		c.Response().Header().Set("Refresh", "1")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return c.Render(http.StatusOK, viewLoading, viewData{Title: "Loading"})
	case routing.RedirectToAuth:
		return c.Redirect(http.StatusSeeOther, routing.AuthPath)
	}

	switch match.Route.Target {
	case routing.TargetAuth:
		return s.authPage(c, session)
	case routing.TargetDoctorView:
		return c.Render(http.StatusOK, viewDoctorView, viewData{
			Title:      "Shared Health Record",
			ShareToken: match.Param("token"),
		})
	case routing.TargetNotFound:
		return c.Render(http.StatusNotFound, viewNotFound, viewData{Title: "Not Found"})
	}

	title, ok := sectionTitles[match.Route.Target]
	if !ok {
		return c.Render(http.StatusNotFound, viewNotFound, viewData{Title: "Not Found"})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Render(http.StatusOK, viewSection, viewData{
		Title:  title,
		User:   session.CurrentUser,
		Nav:    appNav,
		Active: match.Route.Target,
	})
}

// follow feeds the gate's snapshots into mount until it stops deciding
// Loading or probeGrace runs out, and returns the last snapshot and decision.
func (s *Server) follow(ctx context.Context, g *gate.Gate, mount *routing.Mount) (domain.Session, routing.Decision) {
	var decision routing.Decision
	session := s.await(ctx, g, func(snap domain.Session) bool {
		decision = mount.Observe(snap)
		return decision != routing.Loading
	})
	return session, decision
}

// await subscribes to g and returns the first snapshot done accepts, or the
// latest one once probeGrace has passed.
func (s *Server) await(ctx context.Context, g *gate.Gate, done func(domain.Session) bool) domain.Session {
	latest := make(chan domain.Session, 1)
	cancelSub := g.Subscribe(func(snap domain.Session) {
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- snap:
		default:
		}
	})
	defer cancelSub()

	session := g.Snapshot()
	if done(session) {
		return session
	}

	ctx, cancel := context.WithTimeout(ctx, s.probeGrace)
	defer cancel()
	for {
		select {
		case session = <-latest:
			if done(session) {
				return session
			}
		case <-ctx.Done():
			return session
		}
	}
}

func outboundContext(c echo.Context) context.Context {
	return identity.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	var he *echo.HTTPError
	var ae *domain.AuthError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = http.StatusText(code)
	case errors.As(err, &ae):
		code = authStatus(ae.Kind)
		msg = ae.UserMessage()
	default:
		s.log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if code == http.StatusNotFound {
		_ = c.Render(code, viewNotFound, viewData{Title: "Not Found"})
		return
	}
	_ = c.Render(code, viewError, viewData{Title: http.StatusText(code), Banner: msg})
}

func authStatus(kind domain.AuthErrorKind) int {
	switch kind {
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized
	case domain.KindAccountConflict, domain.KindBusy:
		return http.StatusConflict
	case domain.KindValidationFailure:
		return http.StatusUnprocessableEntity
	case domain.KindNetworkFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
