// Package worker runs the background half of the approval workflow on asynq: delayed
// resumes of incomplete decisions and a periodic sweep that finds the ones nobody queued.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskResumeDecision  = "approval:resume"
	TaskSweepIncomplete = "approval:sweep"

	QueueApprovals = "approvals"
)

type ResumePayload struct {
	RequestID string `json:"request_id"`
}

func NewResumeTask(requestID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumePayload{RequestID: requestID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskResumeDecision, payload), nil
}

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSweepIncomplete, nil)
}

// enqueuer is the part of *asynq.Client the scheduler needs.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// taskInspector is the part of *asynq.Inspector used to resolve task id conflicts.
type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Scheduler queues delayed resumes. At most one resume per request waits in the queue.
type Scheduler struct {
	client    enqueuer
	inspector taskInspector
}

func NewScheduler(client *asynq.Client, inspector *asynq.Inspector) *Scheduler {
	return &Scheduler{client: client, inspector: inspector}
}

// ScheduleResume returns nil only when a resume for the request is waiting or running.
// asynq keeps archived and completed tasks under their id, so those are deleted and the
// resume is enqueued again.
func (s *Scheduler) ScheduleResume(ctx context.Context, requestID uuid.UUID, delay time.Duration) error {
	task, err := NewResumeTask(requestID)
	if err != nil {
		return err
	}

	taskID := resumeTaskID(requestID)
	enqueue := func() error {
		_, err := s.client.EnqueueContext(ctx, task,
			asynq.TaskID(taskID),
			asynq.ProcessIn(delay),
			asynq.Queue(QueueApprovals),
		)
		return err
	}

	err = enqueue()
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		var queued bool
		queued, err = s.releaseFinished(taskID)
		if err == nil && !queued {
			err = enqueue()
		}
	}
	if err != nil {
		return fmt.Errorf("enqueue resume for %s: %w", requestID, err)
	}
	return nil
}

// releaseFinished reports whether the task holding taskID will still run. A finished
// task is deleted so its id can be reused.
func (s *Scheduler) releaseFinished(taskID string) (bool, error) {
	info, err := s.inspector.GetTaskInfo(QueueApprovals, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect task %s: %w", taskID, err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
		if err := s.inspector.DeleteTask(QueueApprovals, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return false, fmt.Errorf("delete finished task %s: %w", taskID, err)
		}
		return false, nil
	default:
		return true, nil
	}
}

func resumeTaskID(requestID uuid.UUID) string {
	return "resume:" + requestID.String()
}
