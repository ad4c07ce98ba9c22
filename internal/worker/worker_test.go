package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/testutil"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue keeps task ids the way asynq does: an id stays taken until the task is deleted,
// whatever state it is in.
type fakeQueue struct {
	mu         sync.Mutex
	err        error
	inspectErr error
	states     map[string]asynq.TaskState
	tasks      []*asynq.Task
	opts       [][]asynq.Option
	deleted    []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{states: make(map[string]asynq.TaskState)}
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var id string
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id = o.Value().(string)
		}
	}
	if _, taken := f.states[id]; taken {
		return nil, asynq.ErrTaskIDConflict
	}
	f.states[id] = asynq.TaskStateScheduled
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: id, Queue: QueueApprovals, State: asynq.TaskStateScheduled}, nil
}

func (f *fakeQueue) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	state, ok := f.states[id]
	if !ok {
		return nil, fmt.Errorf("asynq: %w", asynq.ErrTaskNotFound)
	}
	return &asynq.TaskInfo{ID: id, Queue: queue, State: state}, nil
}

func (f *fakeQueue) DeleteTask(_, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[id]; !ok {
		return fmt.Errorf("asynq: %w", asynq.ErrTaskNotFound)
	}
	delete(f.states, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeQueue) scheduler() *Scheduler {
	return &Scheduler{client: f, inspector: f}
}

type fakeOrchestrator struct {
	result *service.DecisionResult
	err    error
	calls  []uuid.UUID
}

func (f *fakeOrchestrator) Decide(context.Context, service.DecideInput) (*service.DecisionResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeOrchestrator) Resume(_ context.Context, id uuid.UUID) (*service.DecisionResult, error) {
	f.calls = append(f.calls, id)
	return f.result, f.err
}

type recordingScheduler struct {
	ids []uuid.UUID
}

func (r *recordingScheduler) ScheduleResume(_ context.Context, id uuid.UUID, _ time.Duration) error {
	r.ids = append(r.ids, id)
	return nil
}

func resumeTask(t *testing.T, id uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := NewResumeTask(id)
	require.NoError(t, err)
	return task
}

func TestScheduler_EnqueuesDelayedResume(t *testing.T) {
	q := newFakeQueue()
	id := uuid.New()

	require.NoError(t, q.scheduler().ScheduleResume(context.Background(), id, time.Minute))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskResumeDecision, q.tasks[0].Type())

	var p ResumePayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	assert.Equal(t, id.String(), p.RequestID)
	assert.Contains(t, q.opts[0], asynq.TaskID("resume:"+id.String()))
	assert.Contains(t, q.opts[0], asynq.Queue(QueueApprovals))
}

func TestScheduler_WaitingResumeIsNotQueuedTwice(t *testing.T) {
	for _, state := range []asynq.TaskState{
		asynq.TaskStatePending,
		asynq.TaskStateScheduled,
		asynq.TaskStateRetry,
		asynq.TaskStateActive,
	} {
		t.Run(state.String(), func(t *testing.T) {
			q := newFakeQueue()
			id := uuid.New()
			q.states[resumeTaskID(id)] = state

			require.NoError(t, q.scheduler().ScheduleResume(context.Background(), id, time.Minute))
			assert.Empty(t, q.tasks)
			assert.Empty(t, q.deleted)
			assert.Equal(t, state, q.states[resumeTaskID(id)])
		})
	}
}

func TestScheduler_FinishedResumeIsQueuedAgain(t *testing.T) {
	for _, state := range []asynq.TaskState{asynq.TaskStateArchived, asynq.TaskStateCompleted} {
		t.Run(state.String(), func(t *testing.T) {
			q := newFakeQueue()
			s := q.scheduler()
			id := uuid.New()
			ctx := context.Background()

			require.NoError(t, s.ScheduleResume(ctx, id, time.Minute))
			// the resume ran out of retries (or finished) and asynq retained it under its id
			q.states[resumeTaskID(id)] = state

			require.NoError(t, s.ScheduleResume(ctx, id, time.Minute))
			assert.Len(t, q.tasks, 2)
			assert.Equal(t, []string{resumeTaskID(id)}, q.deleted)
			assert.Equal(t, asynq.TaskStateScheduled, q.states[resumeTaskID(id)])
		})
	}
}

func TestScheduler_Errors(t *testing.T) {
	ctx := context.Background()

	q := newFakeQueue()
	q.err = errors.New("redis down")
	assert.Error(t, q.scheduler().ScheduleResume(ctx, uuid.New(), time.Minute))

	q = newFakeQueue()
	id := uuid.New()
	q.states[resumeTaskID(id)] = asynq.TaskStateArchived
	q.inspectErr = errors.New("redis down")
	err := q.scheduler().ScheduleResume(ctx, id, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), id.String())
	assert.Empty(t, q.tasks)
}

func TestHandleResume(t *testing.T) {
	id := uuid.New()
	complete := &service.DecisionResult{Steps: service.DecisionSteps{
		Materialize: service.StepResult{Status: service.StepOK},
		Mirror:      service.StepResult{Status: service.StepOK},
		Notify:      service.StepResult{Status: service.StepOK},
	}}
	incomplete := &service.DecisionResult{Steps: service.DecisionSteps{
		Materialize: service.StepResult{Status: service.StepOK},
		Mirror: service.StepResult{
			Status: service.StepFailed,
			Err:    apperr.NewStepFailure("mirror", errors.New("503")),
		},
		Notify: service.StepResult{Status: service.StepOK},
	}}

	tests := []struct {
		name      string
		task      *asynq.Task
		orch      *fakeOrchestrator
		wantErr   bool
		skipRetry bool
	}{
		{"complete", resumeTask(t, id), &fakeOrchestrator{result: complete}, false, false},
		{"incomplete retries", resumeTask(t, id), &fakeOrchestrator{result: incomplete}, true, false},
		{"store error retries", resumeTask(t, id), &fakeOrchestrator{err: errors.New("db down")}, true, false},
		{"not decided", resumeTask(t, id), &fakeOrchestrator{err: apperr.ErrNotDecided}, true, true},
		{"not found", resumeTask(t, id), &fakeOrchestrator{err: apperr.ErrNotFound}, true, true},
		{"bad payload", asynq.NewTask(TaskResumeDecision, []byte("{")), &fakeOrchestrator{}, true, true},
		{"bad id", asynq.NewTask(TaskResumeDecision, []byte(`{"request_id":"x"}`)), &fakeOrchestrator{}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(tt.orch, nil, nil, time.Minute, 10)
			err := h.HandleResume(context.Background(), tt.task)
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Equal(t, []uuid.UUID{id}, tt.orch.calls)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestHandleSweep_QueuesOnlyStaleIncompleteDecisions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	effects := repository.NewEffectRepository(db)
	ctx := context.Background()

	decide := func(status string, decidedAt time.Time) uuid.UUID {
		req := &model.ApprovalRequest{Kind: model.RequestKindProduct, SubmitterRef: uuid.New(), Payload: "{}"}
		require.NoError(t, approvals.Create(ctx, req))
		require.NoError(t, approvals.Transition(ctx, req.ID, model.ApprovalPending, status,
			map[string]interface{}{"decided_at": decidedAt}))
		return req.ID
	}

	old := time.Now().Add(-time.Hour)
	stale := decide(model.ApprovalApproved, old)
	require.NoError(t, effects.MarkDone(ctx, stale, model.StepMaterialize, "entry-1"))

	done := decide(model.ApprovalRejected, old)
	require.NoError(t, effects.MarkDone(ctx, done, model.StepNotify, "1"))

	decide(model.ApprovalApproved, time.Now())

	pending := &model.ApprovalRequest{Kind: model.RequestKindBuyer, SubmitterRef: uuid.New(), Payload: "{}"}
	require.NoError(t, approvals.Create(ctx, pending))

	sched := &recordingScheduler{}
	h := NewHandlers(&fakeOrchestrator{}, approvals, sched, 10*time.Minute, 50)
	require.NoError(t, h.HandleSweep(ctx, NewSweepTask()))
	assert.Equal(t, []uuid.UUID{stale}, sched.ids)
}

func TestNewServeMux_RoutesTasks(t *testing.T) {
	orch := &fakeOrchestrator{result: &service.DecisionResult{Steps: service.DecisionSteps{
		Materialize: service.StepResult{Status: service.StepSkipped},
		Mirror:      service.StepResult{Status: service.StepSkipped},
		Notify:      service.StepResult{Status: service.StepOK},
	}}}
	mux := NewServeMux(NewHandlers(orch, nil, nil, time.Minute, 10))

	id := uuid.New()
	require.NoError(t, mux.ProcessTask(context.Background(), resumeTask(t, id)))
	assert.Equal(t, []uuid.UUID{id}, orch.calls)
}
