package repository

import (
	"context"
	"time"

	"marketplace/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository records per-channel delivery outcomes so a resumed notify step
// only resends to channels that have not succeeded yet.
type NotificationRepository interface {
	SentChannels(ctx context.Context, requestID uuid.UUID, eventType string) ([]string, error)
	Claim(ctx context.Context, requestID uuid.UUID, eventType, channel string, staleBefore time.Time) (bool, error)
	Record(ctx context.Context, requestID uuid.UUID, eventType, channel string, sendErr error) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) SentChannels(ctx context.Context, requestID uuid.UUID, eventType string) ([]string, error) {
	var channels []string
	if err := GetDB(ctx, r.db).Model(&model.NotificationLog{}).
		Where("request_id = ? AND event_type = ? AND status = ?", requestID, eventType, model.NotificationSent).
		Pluck("channel", &channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// Claim marks the delivery as SENDING for the caller. It fails to claim a delivery that
// was already sent or that another caller claimed after staleBefore.
func (r *notificationRepository) Claim(ctx context.Context, requestID uuid.UUID, eventType, channel string, staleBefore time.Time) (bool, error) {
	db := GetDB(ctx, r.db)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.NotificationLog{
		RequestID: requestID,
		EventType: eventType,
		Channel:   channel,
		Status:    model.NotificationSending,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = db.Model(&model.NotificationLog{}).
		Where("request_id = ? AND event_type = ? AND channel = ?", requestID, eventType, channel).
		Where("status = ? OR (status = ? AND updated_at < ?)", model.NotificationFailed, model.NotificationSending, staleBefore).
		Updates(map[string]interface{}{"status": model.NotificationSending, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepository) Record(ctx context.Context, requestID uuid.UUID, eventType, channel string, sendErr error) error {
	now := time.Now()
	row := &model.NotificationLog{
		RequestID: requestID,
		EventType: eventType,
		Channel:   channel,
		Status:    model.NotificationSent,
		Attempts:  1,
		SentAt:    &now,
	}
	set := map[string]interface{}{
		"status":     model.NotificationSent,
		"error":      "",
		"sent_at":    now,
		"attempts":   gorm.Expr("notification_logs.attempts + 1"),
		"updated_at": now,
	}
	if sendErr != nil {
		row.Status = model.NotificationFailed
		row.Error = sendErr.Error()
		row.SentAt = nil
		set["status"] = model.NotificationFailed
		set["error"] = sendErr.Error()
		delete(set, "sent_at")
	}

	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}, {Name: "event_type"}, {Name: "channel"}},
		DoUpdates: clause.Assignments(set),
	}).Create(row).Error
}
