package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Effect steps executed after a decision is committed
const (
	StepMaterialize = "MATERIALIZE"
	StepMirror      = "MIRROR"
	StepNotify      = "NOTIFY"
)

// EffectStep status constants
const (
	StepDone   = "DONE"
	StepFailed = "FAILED"
)

// EffectStep is the per-request completion marker of one post-decision step.
// A DONE marker is never re-executed on resume.
type EffectStep struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_effect_step" json:"request_id"`
	Step        string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_effect_step" json:"step"`
	Status      string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts    int        `gorm:"type:int;not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	ArtifactRef string     `gorm:"type:varchar(100)" json:"artifact_ref"` // catalog entry id, role grant id...
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *EffectStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NotificationLog status constants
const (
	NotificationSending = "SENDING" // claimed by a notify step that has not reported back
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
)

// NotificationLog records the outcome of one channel delivery for a decision event.
type NotificationLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_notification_delivery" json:"request_id"`
	EventType string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_notification_delivery" json:"event_type"`
	Channel   string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_notification_delivery" json:"channel"`
	Status    string     `gorm:"type:varchar(20);not null" json:"status"`
	Attempts  int        `gorm:"type:int;not null;default:0" json:"attempts"`
	Error     string     `gorm:"type:text" json:"error"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (n *NotificationLog) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
