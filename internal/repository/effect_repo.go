package repository

import (
	"context"
	"time"

	"marketplace/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EffectRepository persists per-step completion markers for decided requests.
type EffectRepository interface {
	Steps(ctx context.Context, requestID uuid.UUID) (map[string]model.EffectStep, error)
	MarkDone(ctx context.Context, requestID uuid.UUID, step, artifactRef string) error
	MarkFailed(ctx context.Context, requestID uuid.UUID, step, reason string) error
}

type effectRepository struct {
	db *gorm.DB
}

func NewEffectRepository(db *gorm.DB) EffectRepository {
	return &effectRepository{db: db}
}

func (r *effectRepository) Steps(ctx context.Context, requestID uuid.UUID) (map[string]model.EffectStep, error) {
	var steps []model.EffectStep
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Find(&steps).Error; err != nil {
		return nil, err
	}

	byName := make(map[string]model.EffectStep, len(steps))
	for _, s := range steps {
		byName[s.Step] = s
	}
	return byName, nil
}

func (r *effectRepository) MarkDone(ctx context.Context, requestID uuid.UUID, step, artifactRef string) error {
	now := time.Now()
	return r.upsert(ctx, &model.EffectStep{
		RequestID:   requestID,
		Step:        step,
		Status:      model.StepDone,
		Attempts:    1,
		ArtifactRef: artifactRef,
		CompletedAt: &now,
	}, map[string]interface{}{
		"status":       model.StepDone,
		"artifact_ref": artifactRef,
		"last_error":   "",
		"completed_at": now,
	})
}

func (r *effectRepository) MarkFailed(ctx context.Context, requestID uuid.UUID, step, reason string) error {
	return r.upsert(ctx, &model.EffectStep{
		RequestID: requestID,
		Step:      step,
		Status:    model.StepFailed,
		Attempts:  1,
		LastError: reason,
	}, map[string]interface{}{
		"status":     model.StepFailed,
		"last_error": reason,
	})
}

// upsert inserts the marker or, on (request_id, step) conflict, applies the update and bumps attempts.
func (r *effectRepository) upsert(ctx context.Context, row *model.EffectStep, set map[string]interface{}) error {
	set["attempts"] = gorm.Expr("effect_steps.attempts + 1")
	set["updated_at"] = time.Now()

	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}, {Name: "step"}},
		DoUpdates: clause.Assignments(set),
	}).Create(row).Error
}
