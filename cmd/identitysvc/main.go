// Command identitysvc is the HealthTracker identity service: account
// registration, login, session lookup and logout over JSON.
//
//	@title						HealthTracker Identity API
//	@version					1.0
//	@description				Accounts and bearer-token sessions for the HealthTracker portal.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthtracker/portal/internal/api"
	"github.com/healthtracker/portal/internal/core/service"
	mongodb "github.com/healthtracker/portal/internal/infrastructure/db/mongo"
	redisdb "github.com/healthtracker/portal/internal/infrastructure/db/redis"
	infrahttp "github.com/healthtracker/portal/internal/infrastructure/http"
	"github.com/healthtracker/portal/internal/infrastructure/http/handlers"
	"github.com/healthtracker/portal/internal/infrastructure/queue"
	"github.com/healthtracker/portal/internal/pkg/config"
	"github.com/healthtracker/portal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadIdentity(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{Service: "identity"})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "identity",
	})

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "identitysvc",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	redisClient, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	users := mongodb.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create user indexes")
	}
	attempts := mongodb.NewAttemptRepository(db)
	if err := attempts.EnsureIndexes(ctx, cfg.AuditRetention); err != nil {
		log.Fatal().Err(err).Msg("failed to create login attempt indexes")
	}

	// The audit workers outlive the signal context so queued attempts are
	// flushed after the HTTP server has drained.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	dispatcher := queue.NewAttemptDispatcher(cfg.AuditWorkers, attempts, log)
	dispatcher.Start(auditCtx)

	authService := service.NewAuthService(
		users,
		redisdb.NewRevocationStore(redisClient),
		dispatcher,
		cfg.JWTSecret,
		cfg.TokenTTL,
		log,
	)

	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Log:         log,
		Checkers: []handlers.Checker{
			mongodb.Checker{Client: mongoClient},
			redisdb.Checker{Client: redisClient},
		},
	})

	log.Info().Str("db", cfg.Mongo.Database).Dur("token_ttl", cfg.TokenTTL).Msg("identity service starting")
	serveErr := infrahttp.Serve(ctx, e, ":"+cfg.Port, cfg.ShutdownTimeout, log)

	stopAudit()
	dispatcher.Wait()

	if serveErr != nil {
		log.Error().Err(serveErr).Msg("identity service stopped")
		os.Exit(1)
	}
}
