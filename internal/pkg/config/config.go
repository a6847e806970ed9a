package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// PortalConfig configures cmd/portal.
type PortalConfig struct {
	Port     string `env:"PORTAL_PORT,      default=3000"`
	Env      string `env:"ENV,              default=development"`
	LogLevel string `env:"LOG_LEVEL,        default=info"`

	IdentityURL     string        `env:"IDENTITY_URL,     default=http://localhost:8080"`
	CallTimeout     time.Duration `env:"AUTH_CALL_TIMEOUT, default=10s"`
	ProbeGrace      time.Duration `env:"AUTH_PROBE_GRACE,  default=1500ms"`
	GateIdleTTL     time.Duration `env:"GATE_IDLE_TTL,     default=30m"`
	CookieSecure    bool          `env:"COOKIE_SECURE,     default=false"`
	RememberFor     time.Duration `env:"REMEMBER_ME_FOR,   default=720h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,  default=10s"`
}

// IdentityConfig configures cmd/identitysvc.
type IdentityConfig struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`

	AuditWorkers   int           `env:"AUDIT_WORKERS,   default=4"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION, default=2160h"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=healthtracker"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Development reports whether pretty logs should be used.
func (c PortalConfig) Development() bool { return c.Env == "development" }

func (c IdentityConfig) Development() bool { return c.Env == "development" }

// LoadPortal reads PortalConfig from the environment.
func LoadPortal(ctx context.Context) (*PortalConfig, error) {
	var cfg PortalConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// LoadIdentity reads IdentityConfig from the environment.
func LoadIdentity(ctx context.Context) (*IdentityConfig, error) {
	var cfg IdentityConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
