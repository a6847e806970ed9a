package ports

import (
	"context"

	"github.com/healthtracker/portal/internal/core/domain"
)

// IdentityClient is the portal's view of the remote identity service.
// Every method blocks until the service answers or ctx is done.
type IdentityClient interface {
	// Probe asks whether token still denotes a valid session. An anonymous or
	// expired token yields domain.ErrUnauthenticated.
	Probe(ctx context.Context, token string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Register(ctx context.Context, profile domain.Profile) (string, *domain.User, error)
	Logout(ctx context.Context, token string) error
}
