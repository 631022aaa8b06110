package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type ReconciliationRunRepository struct {
	db *gorm.DB
}

func NewReconciliationRunRepository(db *gorm.DB) *ReconciliationRunRepository {
	return &ReconciliationRunRepository{db: db}
}

func (r *ReconciliationRunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// List returns the tenant's runs, most recent first.
func (r *ReconciliationRunRepository) List(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.ReconciliationRun, error) {
	var runs []models.ReconciliationRun
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID), Page(0, limit)).
		Order("id DESC").
		Find(&runs).Error
	return runs, err
}
