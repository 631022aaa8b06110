package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, translate(err, "tenant %s", id)
	}
	return &tenant, nil
}

// LockForUpdate loads the tenant row with a row lock held until the
// surrounding transaction ends. All tenant-wide writers take it first.
func (r *TenantRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := forUpdate(r.db.WithContext(ctx)).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, translate(err, "tenant %s", id)
	}
	return &tenant, nil
}

func (r *TenantRepository) List(ctx context.Context, skip, limit int) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Scopes(Page(skip, limit)).
		Order("id ASC").
		Find(&tenants).Error
	return tenants, err
}
