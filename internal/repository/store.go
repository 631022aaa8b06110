package repository

import (
	"context"

	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

// Store groups the repositories over one *gorm.DB handle, which is either
// the pool or an open transaction.
type Store struct {
	db *gorm.DB

	Tenants      *TenantRepository
	Vendors      *VendorRepository
	Invoices     *InvoiceRepository
	Transactions *BankTransactionRepository
	Matches      *MatchRepository
	Idempotency  *IdempotencyRepository
	Runs         *ReconciliationRunRepository
	Audit        *MatchAuditLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Tenants:      NewTenantRepository(db),
		Vendors:      NewVendorRepository(db),
		Invoices:     NewInvoiceRepository(db),
		Transactions: NewBankTransactionRepository(db),
		Matches:      NewMatchRepository(db),
		Idempotency:  NewIdempotencyRepository(db),
		Runs:         NewReconciliationRunRepository(db),
		Audit:        NewMatchAuditLogRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single database
// transaction. Returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Vendor{},
		&models.Invoice{},
		&models.BankTransaction{},
		&models.Match{},
		&models.IdempotencyRecord{},
		&models.ReconciliationRun{},
		&models.MatchAuditLog{},
	)
}
