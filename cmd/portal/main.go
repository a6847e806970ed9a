// Command portal serves the HealthTracker web pages. Every visitor gets a
// session gate that tracks whether they are signed in with the identity
// service, and protected pages are only rendered for signed-in visitors.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthtracker/portal/internal/core/gate"
	infrahttp "github.com/healthtracker/portal/internal/infrastructure/http"
	"github.com/healthtracker/portal/internal/infrastructure/http/handlers"
	"github.com/healthtracker/portal/internal/infrastructure/identity"
	"github.com/healthtracker/portal/internal/pkg/config"
	"github.com/healthtracker/portal/internal/portal"
	"github.com/healthtracker/portal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadPortal(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{Service: "portal"})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "portal",
	})

	client := identity.NewHTTPClient(cfg.IdentityURL, &http.Client{Timeout: cfg.CallTimeout})

	gates := gate.NewRegistry(client, gate.Config{
		CallTimeout: cfg.CallTimeout,
		IdleTTL:     cfg.GateIdleTTL,
	}, log)
	go gates.Run(ctx)

	e := infrahttp.NewBase(infrahttp.Options{
		Service:  "portal",
		Log:      log,
		Checkers: []handlers.Checker{client},
	})

	srv, err := portal.New(portal.Options{
		Gates:        gates,
		ProbeGrace:   cfg.ProbeGrace,
		RememberFor:  cfg.RememberFor,
		CookieSecure: cfg.CookieSecure,
		Log:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build portal")
	}
	srv.Register(e)

	log.Info().Str("identity_url", cfg.IdentityURL).Msg("portal starting")
	if err := infrahttp.Serve(ctx, e, ":"+cfg.Port, cfg.ShutdownTimeout, log); err != nil {
		log.Fatal().Err(err).Msg("portal stopped")
	}
}
