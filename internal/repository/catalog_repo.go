package repository

import (
	"context"
	"errors"

	"marketplace/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository stores live catalog entries promoted from approved listings.
type CatalogRepository interface {
	Insert(ctx context.Context, entry *model.CatalogEntry) error
	ExistsForRequest(ctx context.Context, requestID uuid.UUID) (bool, error)
	FindByRequest(ctx context.Context, requestID uuid.UUID) (*model.CatalogEntry, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// Insert creates the entry unless one already exists for its source request, in which
// case entry is overwritten with the stored row.
func (r *catalogRepository) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	db := GetDB(ctx, r.db)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_request_id"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var existing model.CatalogEntry
	if err := db.Unscoped().First(&existing, "source_request_id = ?", entry.SourceRequestID).Error; err != nil {
		return err
	}
	*entry = existing
	return nil
}

func (r *catalogRepository) ExistsForRequest(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Unscoped().Model(&model.CatalogEntry{}).
		Where("source_request_id = ?", requestID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByRequest returns nil without error when no entry was promoted from the request.
func (r *catalogRepository) FindByRequest(ctx context.Context, requestID uuid.UUID) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	err := GetDB(ctx, r.db).Unscoped().First(&entry, "source_request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
