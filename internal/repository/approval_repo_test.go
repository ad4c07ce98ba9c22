package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/model"
	"marketplace/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRequest(t *testing.T, repo ApprovalRepository, kind string) *model.ApprovalRequest {
	t.Helper()
	req := &model.ApprovalRequest{
		Kind:         kind,
		SubmitterRef: uuid.New(),
		Payload:      `{"company_name":"Acme"}`,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	return req
}

func TestApprovalRepository_CreateAndFind(t *testing.T) {
	repo := NewApprovalRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	req := seedRequest(t, repo, model.RequestKindSupplier)
	assert.NotEqual(t, uuid.Nil, req.ID)

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, got.Status)
	assert.Equal(t, req.SubmitterRef, got.SubmitterRef)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApprovalRepository_ListPendingNewestFirst(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	first := seedRequest(t, repo, model.RequestKindSupplier)
	second := seedRequest(t, repo, model.RequestKindBuyer)
	third := seedRequest(t, repo, model.RequestKindSupplier)
	base := time.Now().Add(-time.Hour)
	for i, id := range []uuid.UUID{first.ID, second.ID, third.ID} {
		require.NoError(t, db.Model(&model.ApprovalRequest{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	require.NoError(t, repo.Transition(ctx, second.ID, model.ApprovalPending, model.ApprovalApproved, nil))

	all, total, err := repo.ListPending(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	buyers, total, err := repo.ListPending(ctx, model.RequestKindBuyer, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, buyers)

	paged, _, err := repo.ListPending(ctx, "", 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, first.ID, paged[0].ID)
}

func TestApprovalRepository_TransitionIsCompareAndSwap(t *testing.T) {
	repo := NewApprovalRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	req := seedRequest(t, repo, model.RequestKindProduct)

	err := repo.Transition(ctx, req.ID, model.ApprovalPending, model.ApprovalRejected,
		map[string]interface{}{"rejection_reason": "blurry images"})
	require.NoError(t, err)

	err = repo.Transition(ctx, req.ID, model.ApprovalPending, model.ApprovalApproved, nil)
	assert.ErrorIs(t, err, apperr.ErrConflictAlreadyDecided)

	err = repo.Transition(ctx, uuid.New(), model.ApprovalPending, model.ApprovalApproved, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, got.Status)
	assert.Equal(t, "blurry images", got.RejectionReason)
}

func TestApprovalRepository_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	repo := NewApprovalRepository(testutil.OpenTestDB(t))
	req := seedRequest(t, repo, model.RequestKindBuyer)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := model.ApprovalApproved
			if i%2 == 1 {
				to = model.ApprovalRejected
			}
			results[i] = repo.Transition(context.Background(), req.ID, model.ApprovalPending, to, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflictAlreadyDecided)
	}
	assert.Equal(t, 1, wins)
}

func TestApprovalRepository_UpdateValidation(t *testing.T) {
	repo := NewApprovalRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	req := seedRequest(t, repo, model.RequestKindSupplier)

	require.NoError(t, repo.UpdateValidation(ctx, req.ID, model.ValidationInvalid, "bad"))
	require.NoError(t, repo.UpdateValidation(ctx, req.ID, model.ValidationValid, "good"))

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationValid, got.ValidationStatus)
	assert.Equal(t, "good", got.ValidationMessage)

	assert.ErrorIs(t, repo.UpdateValidation(ctx, uuid.New(), model.ValidationValid, "x"), apperr.ErrNotFound)
}

func TestApprovalRepository_ListIncomplete(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewApprovalRepository(db)
	effects := NewEffectRepository(db)
	ctx := context.Background()
	decidedAt := time.Now().Add(-time.Hour)

	approved := seedRequest(t, repo, model.RequestKindProduct)
	require.NoError(t, repo.Transition(ctx, approved.ID, model.ApprovalPending, model.ApprovalApproved,
		map[string]interface{}{"decided_at": decidedAt}))
	require.NoError(t, effects.MarkDone(ctx, approved.ID, model.StepMaterialize, "x"))
	require.NoError(t, effects.MarkFailed(ctx, approved.ID, model.StepMirror, "sheets down"))

	complete := seedRequest(t, repo, model.RequestKindSupplier)
	require.NoError(t, repo.Transition(ctx, complete.ID, model.ApprovalPending, model.ApprovalRejected,
		map[string]interface{}{"decided_at": decidedAt}))
	require.NoError(t, effects.MarkDone(ctx, complete.ID, model.StepNotify, ""))

	seedRequest(t, repo, model.RequestKindBuyer) // still pending

	got, err := repo.ListIncomplete(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approved.ID, got[0].ID)

	got, err = repo.ListIncomplete(ctx, decidedAt.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApprovalRepository_FindApprovedRegistration(t *testing.T) {
	repo := NewApprovalRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	pending := seedRequest(t, repo, model.RequestKindSupplier)
	_, err := repo.FindApprovedRegistration(ctx, model.RequestKindSupplier, pending.SubmitterRef)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, repo.Transition(ctx, pending.ID, model.ApprovalPending, model.ApprovalApproved,
		map[string]interface{}{"decided_at": time.Now()}))
	got, err := repo.FindApprovedRegistration(ctx, model.RequestKindSupplier, pending.SubmitterRef)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)

	_, err = repo.FindApprovedRegistration(ctx, model.RequestKindBuyer, pending.SubmitterRef)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
