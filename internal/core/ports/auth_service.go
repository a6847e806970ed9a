package ports

import (
	"context"

	"github.com/healthtracker/portal/internal/core/domain"
)

// TokenClaims is what a verified bearer token says about its holder.
type TokenClaims struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt int64
}

type AuthService interface {
	Register(ctx context.Context, profile domain.Profile) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Session returns the user behind a verified, unrevoked token.
	Session(ctx context.Context, claims TokenClaims) (*domain.User, error)
	Logout(ctx context.Context, claims TokenClaims) error
	Verify(ctx context.Context, token string) (TokenClaims, error)
}
