package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRepository is the durable store of approval requests. Status only moves through
// Transition, which is the single serialization point between concurrent deciders.
type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error)
	ListPending(ctx context.Context, kind string, page, limit int) ([]model.ApprovalRequest, int64, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string, fields map[string]interface{}) error
	UpdateValidation(ctx context.Context, id uuid.UUID, status, message string) error
	ListIncomplete(ctx context.Context, decidedBefore time.Time, limit int) ([]model.ApprovalRequest, error)
	FindApprovedRegistration(ctx context.Context, kind string, submitterRef uuid.UUID) (*model.ApprovalRequest, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	req.Status = model.ApprovalPending
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) ListPending(ctx context.Context, kind string, page, limit int) ([]model.ApprovalRequest, int64, error) {
	var requests []model.ApprovalRequest
	var total int64

	query := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).Where("status = ?", model.ApprovalPending)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// Transition moves a request from one status to another with a single conditional update.
// Zero affected rows means either the id is unknown or another decider already won.
func (r *approvalRepository) Transition(ctx context.Context, id uuid.UUID, from, to string, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	db := GetDB(ctx, r.db)
	res := db.Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&model.ApprovalRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.ErrNotFound
	}
	return apperr.ErrConflictAlreadyDecided
}

func (r *approvalRepository) UpdateValidation(ctx context.Context, id uuid.UUID, status, message string) error {
	res := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"validation_status":  status,
			"validation_message": message,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListIncomplete returns decided requests whose post-decision steps have not all reached DONE.
// An approval needs materialize, mirror and notify; a rejection needs notify only.
func (r *approvalRepository) ListIncomplete(ctx context.Context, decidedBefore time.Time, limit int) ([]model.ApprovalRequest, error) {
	var requests []model.ApprovalRequest
	err := GetDB(ctx, r.db).
		Where("status IN ?", []string{model.ApprovalApproved, model.ApprovalRejected}).
		Where("decided_at < ?", decidedBefore).
		Where(`(SELECT COUNT(*) FROM effect_steps es WHERE es.request_id = approval_requests.id AND es.status = ?) <
			CASE WHEN approval_requests.status = ? THEN 3 ELSE 1 END`, model.StepDone, model.ApprovalApproved).
		Order("decided_at ASC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// FindApprovedRegistration returns the latest approved registration of the given kind
// submitted by the account.
func (r *approvalRepository) FindApprovedRegistration(ctx context.Context, kind string, submitterRef uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := GetDB(ctx, r.db).
		Where("kind = ? AND submitter_ref = ? AND status = ?", kind, submitterRef, model.ApprovalApproved).
		Order("decided_at DESC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}
