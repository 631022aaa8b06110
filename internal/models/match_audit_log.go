package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	AuditProposed  = "proposed"
	AuditConfirmed = "confirmed"
	AuditRejected  = "rejected"
)

type MatchAuditLog struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	MatchID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"match_id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid" json:"invoice_id"`
	TransactionID uuid.UUID       `gorm:"type:uuid" json:"bank_transaction_id"`
	Action        string          `gorm:"size:16;not null" json:"action"`
	Score         decimal.Decimal `gorm:"type:numeric(5,2)" json:"score"`
	PerformedBy   string          `json:"performed_by"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (l *MatchAuditLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = NewID()
	}
	return nil
}
