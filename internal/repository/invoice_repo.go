package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// InvoiceFilter narrows ListInvoices. Nil fields are ignored.
type InvoiceFilter struct {
	Status    *models.InvoiceStatus
	VendorID  *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Skip      int
	Limit     int
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit("Vendor").Create(invoice).Error
}

// GetByID fetches a single invoice with its vendor.
func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Preload("Vendor").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "invoice %s", id)
	}
	return &invoice, nil
}

// Search lists invoices with optional filters, oldest first.
func (r *InvoiceRepository) Search(ctx context.Context, tenantID uuid.UUID, f InvoiceFilter) ([]models.Invoice, error) {
	var invoices []models.Invoice

	query := r.db.WithContext(ctx).Model(&models.Invoice{}).Scopes(ForTenant(tenantID))

	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.VendorID != nil {
		query = query.Where("vendor_id = ?", *f.VendorID)
	}
	if f.StartDate != nil {
		query = query.Where("invoice_date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		query = query.Where("invoice_date <= ?", *f.EndDate)
	}
	if f.MinAmount != nil {
		query = query.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		query = query.Where("amount <= ?", *f.MaxAmount)
	}

	err := query.Scopes(Page(f.Skip, f.Limit)).Order("id ASC").Find(&invoices).Error
	return invoices, err
}

// ListOpen returns every open invoice of the tenant, vendor preloaded,
// in id order.
func (r *InvoiceRepository) ListOpen(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Where("status = ?", models.InvoiceOpen).
		Preload("Vendor").
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}

// TransitionStatus moves the invoice from one status to another and reports
// how many rows changed (0 when the invoice is missing or not in from).
func (r *InvoiceRepository) TransitionStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.InvoiceStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Scopes(ForTenant(tenantID)).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// Delete hard-deletes an invoice. Matches referencing it are left as is.
func (r *InvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Delete(&models.Invoice{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "invoice %s", id)
	}
	return nil
}
