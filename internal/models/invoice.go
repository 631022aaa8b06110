package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "open"
	InvoiceMatched InvoiceStatus = "matched"
	InvoicePaid    InvoiceStatus = "paid"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceOpen, InvoiceMatched, InvoicePaid:
		return true
	}
	return false
}

type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_invoices_tenant_status,priority:1" json:"tenant_id"`
	VendorID      *uuid.UUID      `gorm:"type:uuid;index" json:"vendor_id"`
	Vendor        *Vendor         `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	InvoiceNumber *string         `gorm:"index" json:"invoice_number"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null;default:USD" json:"currency"`
	InvoiceDate   *time.Time      `json:"invoice_date"`
	Description   *string         `json:"description"`
	Status        InvoiceStatus   `gorm:"size:16;not null;default:open;index:idx_invoices_tenant_status,priority:2" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = NewID()
	}
	return nil
}
