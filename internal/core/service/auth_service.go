package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/ports"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

// AuthService implements registration, login, session lookup and logout.
type AuthService struct {
	repo        ports.AuthRepository
	revocations ports.RevocationStore
	attempts    ports.AttemptRecorder
	jwtSecret   string
	tokenTTL    time.Duration
	log         zerolog.Logger
	now         func() time.Time
	sign        func(*jwt.Token) (string, error)
}

func NewAuthService(
	repo ports.AuthRepository,
	revocations ports.RevocationStore,
	attempts ports.AttemptRecorder,
	jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	s := &AuthService{
		repo:        repo,
		revocations: revocations,
		attempts:    attempts,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.sign = func(t *jwt.Token) (string, error) {
		return t.SignedString([]byte(s.jwtSecret))
	}
	return s
}

// Register creates the account and signs it in. If the token cannot be
// issued the account is removed again, so callers never observe half a
// registration.
func (s *AuthService) Register(ctx context.Context, p domain.Profile) (string, *domain.User, error) {
	p.Email = normaliseEmail(p.Email)
	if p.Email == "" || p.Password == "" || strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		s.record(ctx, p.Email, "register", domain.ErrValidation)
		return "", nil, domain.ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &domain.User{
		Email:        p.Email,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Phone:        strings.TrimSpace(p.Phone),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.record(ctx, p.Email, "register", err)
		return "", nil, err
	}

	token, err := s.generateToken(created)
	if err != nil {
		if delErr := s.repo.Delete(ctx, created.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("user_id", created.ID).Msg("failed to roll back registration")
		}
		return "", nil, fmt.Errorf("register: issue token: %w", err)
	}

	s.record(ctx, p.Email, "register", nil)
	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return token, created, nil
}

// Login checks the password and returns a fresh token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = normaliseEmail(email)
	if email == "" || password == "" {
		s.record(ctx, email, "login", domain.ErrInvalidCredentials)
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.record(ctx, email, "login", err)
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.record(ctx, email, "login", domain.ErrInvalidCredentials)
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	s.record(ctx, email, "login", nil)
	return token, user, nil
}

// Verify parses a bearer token and rejects it if it is malformed, expired or revoked.
func (s *AuthService) Verify(ctx context.Context, token string) (ports.TokenClaims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tkn.Valid {
		return ports.TokenClaims{}, domain.ErrUnauthenticated
	}

	tc := ports.TokenClaims{}
	tc.UserID, _ = claims["sub"].(string)
	tc.Email, _ = claims["email"].(string)
	tc.TokenID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Unix()
	}
	if tc.UserID == "" || tc.TokenID == "" {
		return ports.TokenClaims{}, domain.ErrUnauthenticated
	}

	revoked, err := s.revocations.IsRevoked(ctx, tc.TokenID)
	if err != nil {
		return ports.TokenClaims{}, fmt.Errorf("verify: revocation check: %w", err)
	}
	if revoked {
		return ports.TokenClaims{}, domain.ErrTokenRevoked
	}
	return tc, nil
}

// Session returns the user a verified token belongs to.
func (s *AuthService) Session(ctx context.Context, claims ports.TokenClaims) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes the token until it would have expired on its own.
func (s *AuthService) Logout(ctx context.Context, claims ports.TokenClaims) error {
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Str("user_id", claims.UserID).Msg("user logged out")
	return nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	return s.sign(jwt.NewWithClaims(jwt.SigningMethodHS256, claims))
}

// record hands the outcome to the audit trail and counts it.
func (s *AuthService) record(ctx context.Context, email, action string, err error) {
	result, reason := "success", ""
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserExists):
		result, reason = "conflict", err.Error()
	case errors.Is(err, domain.ErrValidation):
		result, reason = "invalid_input", err.Error()
	default:
		result, reason = "invalid_credentials", err.Error()
	}
	metrics.IdentityLoginsTotal.WithLabelValues(action, result).Inc()

	if s.attempts == nil {
		return
	}
	s.attempts.Record(ports.LoginAttempt{
		Email:     email,
		Action:    action,
		Success:   err == nil,
		Reason:    reason,
		IPAddress: ports.ClientIPFromContext(ctx),
		At:        s.now(),
	})
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
