package ports

import (
	"context"
	"time"
)

// LoginAttempt is one audited sign-in or registration outcome.
type LoginAttempt struct {
	Email     string
	Action    string // "login" or "register"
	Success   bool
	Reason    string // empty on success
	IPAddress string
	At        time.Time
}

// LoginAttemptRepository persists the audit trail of sign-in attempts.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt LoginAttempt) error
}

// AttemptRecorder accepts attempts for asynchronous persistence.
type AttemptRecorder interface {
	Record(attempt LoginAttempt)
}

type clientIPKey struct{}

// WithClientIP stores the caller's address for the audit trail.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
