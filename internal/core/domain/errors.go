package domain

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why an identity command failed.
type AuthErrorKind string

const (
	KindInvalidCredentials AuthErrorKind = "invalid_credentials"
	KindAccountConflict    AuthErrorKind = "account_conflict"
	KindNetworkFailure     AuthErrorKind = "network_failure"
	KindValidationFailure  AuthErrorKind = "validation_failure"
	KindBusy               AuthErrorKind = "busy"
	KindUnknown            AuthErrorKind = "unknown"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrNetworkFailure     = errors.New("identity service unreachable")
	ErrValidation         = errors.New("validation failed")
	ErrCommandInFlight    = errors.New("another session command is in flight")
	ErrUnauthenticated    = errors.New("no valid session")
	ErrTokenRevoked       = errors.New("token revoked")
)

// AuthError is the error every session command resolves to on failure.
// Err keeps the underlying cause for logging; Kind is what callers branch on.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidCredentials) and friends match on Kind even
// when the cause was produced by a different layer.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Kind == KindInvalidCredentials
	case ErrUserExists:
		return e.Kind == KindAccountConflict
	case ErrNetworkFailure:
		return e.Kind == KindNetworkFailure
	case ErrValidation:
		return e.Kind == KindValidationFailure
	case ErrCommandInFlight:
		return e.Kind == KindBusy
	}
	return false
}

// NewAuthError wraps cause under kind.
func NewAuthError(kind AuthErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Err: cause}
}

// AsAuthError normalises any error into an *AuthError. Sentinel causes are
// mapped onto their kind; anything unrecognised becomes KindUnknown.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUnauthenticated):
		return NewAuthError(KindInvalidCredentials, err)
	case errors.Is(err, ErrUserExists):
		return NewAuthError(KindAccountConflict, err)
	case errors.Is(err, ErrNetworkFailure):
		return NewAuthError(KindNetworkFailure, err)
	case errors.Is(err, ErrValidation):
		return NewAuthError(KindValidationFailure, err)
	case errors.Is(err, ErrCommandInFlight):
		return NewAuthError(KindBusy, err)
	}
	return NewAuthError(KindUnknown, fmt.Errorf("unexpected: %w", err))
}

// UserMessage is the short, user-facing text shown in the inline banner.
func (e *AuthError) UserMessage() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindAccountConflict:
		return "An account with this email already exists."
	case KindNetworkFailure:
		return "We couldn't reach the server. Please try again."
	case KindValidationFailure:
		if e.Message != "" {
			return e.Message
		}
		return "Some fields are invalid."
	case KindBusy:
		return "Please wait for the current request to finish."
	default:
		return "Something went wrong. Please try again."
	}
}
