// Package invoices manages tenants, vendors and invoices.
package invoices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

const (
	DefaultCurrency = "USD"
	DefaultLimit    = 100
	MaxLimit        = 1000
)

type CreateInvoiceInput struct {
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency"`
	VendorID      *uuid.UUID       `json:"vendor_id"`
	InvoiceNumber *string          `json:"invoice_number"`
	InvoiceDate   *time.Time       `json:"invoice_date"`
	Description   *string          `json:"description"`
}

// ListInvoicesInput filters an invoice listing. Nil fields are ignored.
type ListInvoicesInput struct {
	Status    *models.InvoiceStatus
	VendorID  *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Skip      int
	Limit     int
}

type Service struct {
	store  *repository.Store
	logger *zap.Logger
}

func NewService(store *repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Tenants

func (s *Service) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("tenant name is required")
	}
	tenant := &models.Tenant{Name: name}
	if err := s.store.Tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID.String()))
	return tenant, nil
}

func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.store.Tenants.GetByID(ctx, id)
}

func (s *Service) ListTenants(ctx context.Context, skip, limit int) ([]models.Tenant, error) {
	if skip < 0 {
		return nil, apperrors.Validation("skip must not be negative")
	}
	return s.store.Tenants.List(ctx, skip, clampLimit(limit))
}

// Vendors

func (s *Service) CreateVendor(ctx context.Context, tenantID uuid.UUID, name string) (*models.Vendor, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("vendor name is required")
	}
	vendor := &models.Vendor{TenantID: tenantID, Name: name}
	if err := s.store.Vendors.Create(ctx, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}

func (s *Service) ListVendors(ctx context.Context, tenantID uuid.UUID) ([]models.Vendor, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Vendors.List(ctx, tenantID)
}

// Invoices

// CreateInvoice stores a new open invoice. A vendor, when given, must
// belong to the same tenant.
func (s *Service) CreateInvoice(ctx context.Context, tenantID uuid.UUID, in CreateInvoiceInput) (*models.Invoice, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	if in.Amount == nil {
		return nil, apperrors.Validation("amount is required")
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.Validation("amount must not be negative")
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	invoice := &models.Invoice{
		TenantID:      tenantID,
		VendorID:      in.VendorID,
		InvoiceNumber: in.InvoiceNumber,
		Amount:        in.Amount.Round(2),
		Currency:      currency,
		InvoiceDate:   in.InvoiceDate,
		Description:   in.Description,
		Status:        models.InvoiceOpen,
	}

	if in.VendorID != nil {
		vendor, err := s.store.Vendors.GetByID(ctx, tenantID, *in.VendorID)
		if err != nil {
			return nil, err
		}
		invoice.Vendor = vendor
	}

	if err := s.store.Invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Invoices.GetByID(ctx, tenantID, id)
}

func (s *Service) ListInvoices(ctx context.Context, tenantID uuid.UUID, in ListInvoicesInput) ([]models.Invoice, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.Validation("unknown invoice status %q", *in.Status)
	}
	if in.Skip < 0 {
		return nil, apperrors.Validation("skip must not be negative")
	}

	return s.store.Invoices.Search(ctx, tenantID, repository.InvoiceFilter{
		Status:    in.Status,
		VendorID:  in.VendorID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		MinAmount: in.MinAmount,
		MaxAmount: in.MaxAmount,
		Skip:      in.Skip,
		Limit:     clampLimit(in.Limit),
	})
}

// DeleteInvoice hard-deletes the invoice. Its matches are kept and will
// fail lookups of the invoice from then on.
func (s *Service) DeleteInvoice(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return err
	}
	if err := s.store.Invoices.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("invoice deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", id.String()),
	)
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
