package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/config"
	"github.com/noah-isme/internship-approval-api/internal/database"
	"github.com/noah-isme/internship-approval-api/internal/handler"
	"github.com/noah-isme/internship-approval-api/internal/middleware"
	"github.com/noah-isme/internship-approval-api/internal/observability"
	"github.com/noah-isme/internship-approval-api/internal/repository"
	"github.com/noah-isme/internship-approval-api/internal/router"
	"github.com/noah-isme/internship-approval-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)
	audit := service.NewAuditTrail(store)

	events := service.NewTransitionEventService(redisClient, cfg.EventsChannel, natsConn, logger)
	events.Start(ctx)

	roster := service.NewCachedRoster(
		service.NewCommitteeRoster(store.Applications(), store.Assignments()),
		redisClient,
		cfg.RosterCacheTTL,
		logger,
	)

	workflow := service.NewApprovalWorkflow(service.WorkflowDeps{
		Store:     store,
		Machine:   service.NewStatusMachine(store, audit, events),
		Votes:     service.NewVoteAggregator(store, roster, audit, events),
		Detector:  service.NewConflictDetector(store, audit),
		Scores:    service.NewBulkScoreUpdater(store, service.ScoreRange{Min: cfg.ScoreMin, Max: cfg.ScoreMax}),
		Audit:     audit,
		Sanitizer: service.NewTextSanitizer(),
		Validator: validate,
	}, service.WorkflowConfig{StalledAfter: cfg.WorkflowStalledAfter})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		ApprovalHandler:   handler.NewApprovalHandler(workflow, logger),
		CommitteeHandler:  handler.NewCommitteeHandler(workflow, middleware.RateLimit("votes", cfg.VoteRateLimitPerMin, time.Minute), logger),
		ScoreHandler:      handler.NewScoreHandler(workflow, logger),
		RealtimeHandler:   handler.NewRealtimeHandler(events, 0, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		MetricsHandler:    observability.MetricsHandler(),
		RealtimeTransport: realtimeTransport(redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	if cfg.UsesSQLite() {
		return database.ConnectSQLite(cfg.DatabaseURL)
	}
	return database.ConnectPostgres(cfg.DatabaseURL)
}

func realtimeTransport(redisClient *redis.Client, natsConn *nats.Conn) string {
	switch {
	case redisClient != nil && natsConn != nil:
		return "redis+nats"
	case redisClient != nil:
		return "redis"
	case natsConn != nil:
		return "nats"
	default:
		return "local"
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
