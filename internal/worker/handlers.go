package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/logging"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Handlers processes approval tasks.
type Handlers struct {
	orch       service.Orchestrator
	approvals  repository.ApprovalRepository
	scheduler  service.RetryScheduler
	grace      time.Duration
	sweepBatch int
	log        zerolog.Logger
}

// NewHandlers wires the task handlers. Requests decided less than grace ago are left to the
// resume their own decision scheduled.
func NewHandlers(orch service.Orchestrator, approvals repository.ApprovalRepository, scheduler service.RetryScheduler, grace time.Duration, sweepBatch int) *Handlers {
	return &Handlers{
		orch:       orch,
		approvals:  approvals,
		scheduler:  scheduler,
		grace:      grace,
		sweepBatch: sweepBatch,
		log:        logging.Component("worker"),
	}
}

func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskResumeDecision, h.HandleResume)
	mux.HandleFunc(TaskSweepIncomplete, h.HandleSweep)
	return mux
}

// HandleResume re-attempts the incomplete steps of one decision. An incomplete result is
// returned as an error so asynq retries the task with backoff.
func (h *Handlers) HandleResume(ctx context.Context, t *asynq.Task) error {
	var p ResumePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode resume payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(p.RequestID)
	if err != nil {
		return fmt.Errorf("invalid request id %q: %w", p.RequestID, asynq.SkipRetry)
	}

	res, err := h.orch.Resume(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrNotDecided) {
		h.log.Warn().Err(err).Str("request_id", p.RequestID).Msg("dropping resume task")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	if !res.Complete() {
		return fmt.Errorf("request %s still incomplete: %w", id, errors.Join(failureErrors(res)...))
	}
	h.log.Info().Str("request_id", p.RequestID).Msg("decision completed on resume")
	return nil
}

// HandleSweep queues a resume for every decision left incomplete past the grace period.
func (h *Handlers) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	requests, err := h.approvals.ListIncomplete(ctx, time.Now().Add(-h.grace), h.sweepBatch)
	if err != nil {
		return fmt.Errorf("list incomplete decisions: %w", err)
	}

	var errs []error
	for _, r := range requests {
		if err := h.scheduler.ScheduleResume(ctx, r.ID, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if len(requests) > 0 {
		h.log.Info().Int("found", len(requests)).Int("failed", len(errs)).Msg("sweep queued resumes")
	}
	return errors.Join(errs...)
}

func failureErrors(res *service.DecisionResult) []error {
	failures := res.Failures()
	if len(failures) == 0 {
		return []error{errors.New("steps pending")}
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
	}
	return errs
}
