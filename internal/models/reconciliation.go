package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunCompleted = "completed"
)

// ReconciliationRun records one reconcile invocation for a tenant.
type ReconciliationRun struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	InvoicesConsidered     int        `json:"invoices_considered"`
	TransactionsConsidered int        `json:"transactions_considered"`
	PairsScored            int        `json:"pairs_scored"`
	MatchesProposed        int        `json:"matches_proposed"`
	Status                 string     `json:"status"`
	StartedAt              time.Time  `json:"started_at"`
	CompletedAt            *time.Time `json:"completed_at"`
	CreatedAt              time.Time  `json:"created_at"`
}

func (r *ReconciliationRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = NewID()
	}
	return nil
}
