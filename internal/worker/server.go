package worker

import (
	"context"
	"fmt"

	"marketplace/internal/config"
	"marketplace/internal/logging"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// Run processes approval tasks and registers the periodic sweep until ctx is cancelled.
func Run(ctx context.Context, redis config.RedisConfig, cfg config.WorkerConfig, h *Handlers) error {
	log := logging.Component("worker")
	opt := RedisOpt(redis)

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueApprovals: 1},
		Logger:      asynqLogger{},
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: asynqLogger{}})
	if _, err := scheduler.Register(cfg.SweepInterval, NewSweepTask(),
		asynq.Queue(QueueApprovals),
		asynq.Timeout(cfg.TaskTimeout),
	); err != nil {
		return fmt.Errorf("register sweep %q: %w", cfg.SweepInterval, err)
	}

	if err := srv.Start(NewServeMux(h)); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start sweep scheduler: %w", err)
	}
	log.Info().Int("concurrency", cfg.Concurrency).Str("sweep", cfg.SweepInterval).Msg("worker started")

	<-ctx.Done()

	log.Info().Msg("shutting down worker")
	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}

// asynqLogger routes asynq's own logs through zerolog.
type asynqLogger struct{}

func (asynqLogger) log() *zerolog.Logger {
	l := logging.Component("asynq")
	return &l
}

func (a asynqLogger) Debug(args ...interface{}) { a.log().Debug().Msg(fmt.Sprint(args...)) }

func (a asynqLogger) Info(args ...interface{}) { a.log().Info().Msg(fmt.Sprint(args...)) }

func (a asynqLogger) Warn(args ...interface{}) { a.log().Warn().Msg(fmt.Sprint(args...)) }

func (a asynqLogger) Error(args ...interface{}) { a.log().Error().Msg(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...interface{}) { a.log().Fatal().Msg(fmt.Sprint(args...)) }
