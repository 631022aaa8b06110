package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MatchStatus string

const (
	MatchProposed  MatchStatus = "proposed"
	MatchConfirmed MatchStatus = "confirmed"
	MatchRejected  MatchStatus = "rejected"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchProposed, MatchConfirmed, MatchRejected:
		return true
	}
	return false
}

// CanTransition reports whether a match may move from s to next.
// Only proposed matches move; confirmed and rejected are terminal.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	return s == MatchProposed && (next == MatchConfirmed || next == MatchRejected)
}

// Match pairs one invoice with one bank transaction. InvoiceID and
// TransactionID carry no foreign keys: invoices are hard-deleted and the
// match row is left dangling.
type Match struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_matches_pair,priority:1;index:idx_matches_tenant_status,priority:1" json:"tenant_id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_matches_pair,priority:2" json:"invoice_id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_matches_pair,priority:3;index" json:"bank_transaction_id"`
	Score         decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"score"`
	Status        MatchStatus     `gorm:"size:16;not null;default:proposed;index:idx_matches_tenant_status,priority:2" json:"status"`
	Details       datatypes.JSON  `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (m *Match) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = NewID()
	}
	return nil
}
