package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductPayload is the write-once body of a PRODUCT listing request.
type ProductPayload struct {
	Name             string          `json:"name" validate:"required,max=255"`
	Category         string          `json:"category" validate:"max=100"`
	Description      string          `json:"description,omitempty"`
	Specifications   string          `json:"specifications,omitempty"`
	Price            decimal.Decimal `json:"price"`
	MinOrderQuantity int             `json:"min_order_quantity" validate:"required,gte=1"`
	Images           []string        `json:"images,omitempty" validate:"dive,url"`
}

// CatalogEntry is a live catalog product promoted from an approved listing request.
// SourceRequestID is the idempotency key: one entry per approved request.
type CatalogEntry struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SourceRequestID  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"source_request_id"`
	SupplierRef      uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_ref"`
	Name             string          `gorm:"type:varchar(255);not null" json:"name"`
	Category         string          `gorm:"type:varchar(100);index" json:"category"`
	Description      string          `gorm:"type:text" json:"description"`
	Specifications   string          `gorm:"type:text" json:"specifications"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	MinOrderQuantity int             `gorm:"type:int;not null;default:1" json:"min_order_quantity"`
	Images           string          `gorm:"type:jsonb" json:"images"` // JSON array of URLs
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (e *CatalogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
