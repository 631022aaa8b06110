package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BankTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ExternalID  *string         `gorm:"index" json:"external_id"`
	PostedAt    time.Time       `gorm:"not null;index" json:"posted_at"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null;default:USD" json:"currency"`
	Description *string         `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (t *BankTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = NewID()
	}
	return nil
}
