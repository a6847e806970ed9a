package routing

import "github.com/healthtracker/portal/internal/core/domain"

// Decision is what the portal does with a resolved route.
type Decision string

const (
	Render         Decision = "render"
	Loading        Decision = "loading"
	RedirectToAuth Decision = "redirect_to_auth"
)

// Guard decides whether route may render for session. Only protected routes
// consult the session; while it is still loading they show a neutral loading
// state rather than redirecting.
func Guard(route RouteDescriptor, session domain.Session) Decision {
	if route.Visibility != Protected {
		return Render
	}
	if session.IsLoading {
		return Loading
	}
	if session.CurrentUser != nil {
		return Render
	}
	return RedirectToAuth
}

// MountState tracks one render of a protected route.
type MountState string

const (
	MountIdle            MountState = "idle"
	MountProbing         MountState = "probing"
	MountAuthenticated   MountState = "authenticated"
	MountUnauthenticated MountState = "unauthenticated"
	MountUnguarded       MountState = "unguarded"
)

// Mount follows a route through session changes. Decisions are never cached
// across mounts: every render starts a fresh Mount in MountIdle.
type Mount struct {
	route RouteDescriptor
	state MountState
}

// NewMount starts a mount for route.
func NewMount(route RouteDescriptor) *Mount {
	return &Mount{route: route, state: MountIdle}
}

// State reports where the mount is.
func (m *Mount) State() MountState { return m.state }

// Route returns the mounted route.
func (m *Mount) Route() RouteDescriptor { return m.route }

// Observe feeds a session snapshot into the mount and returns the decision it implies.
func (m *Mount) Observe(session domain.Session) Decision {
	d := Guard(m.route, session)
	switch {
	case m.route.Visibility != Protected:
		m.state = MountUnguarded
	case d == Loading:
		m.state = MountProbing
	case d == Render:
		m.state = MountAuthenticated
	default:
		m.state = MountUnauthenticated
	}
	return d
}
