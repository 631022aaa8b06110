package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IdempotencyRecord memoizes a bulk transaction import under a caller
// supplied key. Keys are unique per tenant.
type IdempotencyRecord struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:ux_idempotency_tenant_key,priority:1"`
	IdempotencyKey string                         `gorm:"not null;uniqueIndex:ux_idempotency_tenant_key,priority:2"`
	RequestHash    string                         `gorm:"size:64;not null"`
	TransactionIDs datatypes.JSONSlice[uuid.UUID] `gorm:"column:transaction_ids"`
	CreatedAt      time.Time
}

func (r *IdempotencyRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = NewID()
	}
	return nil
}
