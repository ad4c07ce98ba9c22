package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role names granted or checked by the approval workflow
const (
	RoleAdmin    = "admin"
	RoleSupplier = "supplier"
	RoleBuyer    = "buyer"
)

// Role represents a user role with associated permissions
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Permission represents a single permission that can be assigned to roles
type Permission struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"` // e.g. "approvals.read"
	Name  string    `gorm:"type:varchar(255);not null" json:"name"`
	Group string    `gorm:"type:varchar(50);not null;index" json:"group"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AccountRole is an access role granted to an account. A grant produced by an approval
// carries the request id so each approval yields at most one grant.
type AccountRole struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_account_role" json:"account_id"`
	RoleName          string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_account_role" json:"role_name"`
	ApprovalRequestID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"approval_request_id"`
	GrantedAt         time.Time  `gorm:"autoCreateTime" json:"granted_at"`
}

func (a *AccountRole) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
