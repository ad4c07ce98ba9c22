package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestKind enum constants
const (
	RequestKindSupplier = "SUPPLIER"
	RequestKindBuyer    = "BUYER"
	RequestKindProduct  = "PRODUCT"
)

// ApprovalStatus enum constants
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// ValidationStatus enum constants. An empty value means no verdict was recorded.
const (
	ValidationPending = "PENDING"
	ValidationValid   = "VALID"
	ValidationInvalid = "INVALID"
)

// ApprovalRequest is a submitted supplier/buyer registration or product listing awaiting
// an admin decision. Payload is write-once; only status, validation, rejection and decision
// fields change after creation. Rows are never deleted.
type ApprovalRequest struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Kind              string     `gorm:"type:varchar(20);not null;index" json:"kind"` // SUPPLIER, BUYER, PRODUCT
	Status            string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	SubmitterRef      uuid.UUID  `gorm:"type:uuid;not null;index" json:"submitter_ref"`
	Payload           string     `gorm:"type:jsonb;not null" json:"payload"`
	ValidationStatus  string     `gorm:"type:varchar(20)" json:"validation_status"`
	ValidationMessage string     `gorm:"type:text" json:"validation_message"`
	RejectionReason   string     `gorm:"type:text" json:"rejection_reason"`
	DecidedBy         *uuid.UUID `gorm:"type:uuid" json:"decided_by"`
	DecidedAt         *time.Time `json:"decided_at"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (r *ApprovalRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsDecided reports whether the request reached a terminal status.
func (r *ApprovalRequest) IsDecided() bool {
	return r.Status == ApprovalApproved || r.Status == ApprovalRejected
}

// IsRegistration reports whether approving the request grants an account role.
func (r *ApprovalRequest) IsRegistration() bool {
	return r.Kind == RequestKindSupplier || r.Kind == RequestKindBuyer
}

// RegistrationPayload is the write-once body of a SUPPLIER or BUYER request.
type RegistrationPayload struct {
	CompanyName   string `json:"company_name" validate:"required,max=255"`
	ContactPerson string `json:"contact_person" validate:"max=255"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,max=20"`
	TaxID         string `json:"tax_id" validate:"required"`
	BusinessType  string `json:"business_type,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Pincode       string `json:"pincode,omitempty"`
}
