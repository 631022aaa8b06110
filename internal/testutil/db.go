// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// NewDB opens a private in-memory sqlite database with all tables migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: name}
	require.NoError(t, repository.NewTenantRepository(db).Create(context.Background(), tenant))
	return tenant
}

func CreateVendor(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name string) *models.Vendor {
	t.Helper()
	vendor := &models.Vendor{TenantID: tenantID, Name: name}
	require.NoError(t, repository.NewVendorRepository(db).Create(context.Background(), vendor))
	return vendor
}

// InvoiceOpts carries the optional invoice fields.
type InvoiceOpts struct {
	VendorID    *uuid.UUID
	Date        *time.Time
	Description string
}

func CreateInvoice(t *testing.T, db *gorm.DB, tenantID uuid.UUID, amount string, opts InvoiceOpts) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		TenantID:    tenantID,
		VendorID:    opts.VendorID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		InvoiceDate: opts.Date,
		Status:      models.InvoiceOpen,
	}
	if opts.Description != "" {
		invoice.Description = &opts.Description
	}
	require.NoError(t, repository.NewInvoiceRepository(db).Create(context.Background(), invoice))
	return invoice
}

func CreateTransaction(t *testing.T, db *gorm.DB, tenantID uuid.UUID, amount string, posted time.Time, description string) *models.BankTransaction {
	t.Helper()
	tx := models.BankTransaction{
		TenantID: tenantID,
		PostedAt: posted,
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
	}
	if description != "" {
		tx.Description = &description
	}
	txs := []models.BankTransaction{tx}
	require.NoError(t, repository.NewBankTransactionRepository(db).CreateBatch(context.Background(), txs))
	return &txs[0]
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
