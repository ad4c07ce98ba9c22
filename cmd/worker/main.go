package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/logging"
	"marketplace/internal/mirror"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/tracing"
	"marketplace/internal/worker"

	"github.com/hibiken/asynq"
)

// The worker resumes decisions whose post-decision steps did not all complete.
func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	log := logging.Component("worker")

	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR is required to run the worker")
	}

	if err := tracing.Init("marketplace-worker", cfg.Trace.Output); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	dispatcher, err := notify.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile notification templates")
	}

	sink, err := mirror.New(ctx, cfg.Mirror)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Mirror.Backend).Msg("failed to create mirror sink")
	}
	defer sink.Close()

	approvalRepo := repository.NewApprovalRepository(db)

	// Retries of resume tasks are asynq's job, so this orchestrator schedules nothing itself.
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		TxManager:     repository.NewTransactionManager(db),
		Approvals:     approvalRepo,
		Catalog:       repository.NewCatalogRepository(db),
		Roles:         repository.NewRoleRepository(db),
		Effects:       repository.NewEffectRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Audit:         repository.NewAuditRepository(db),
		Mirror:        sink,
		Notifier:      dispatcher,
	}, service.NewOrchestratorConfig(cfg.Orchestrator))

	client := asynq.NewClient(worker.RedisOpt(cfg.Redis))
	defer client.Close()
	inspector := asynq.NewInspector(worker.RedisOpt(cfg.Redis))
	defer inspector.Close()

	handlers := worker.NewHandlers(orchestrator, approvalRepo, worker.NewScheduler(client, inspector),
		cfg.Orchestrator.RetryDelay, cfg.Worker.SweepBatch)

	if err := worker.Run(ctx, cfg.Redis, cfg.Worker, handlers); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
}
