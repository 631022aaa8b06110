package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *VendorRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		First(&vendor, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "vendor %s", id)
	}
	return &vendor, nil
}

func (r *VendorRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Vendor, error) {
	var vendors []models.Vendor
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Order("id ASC").
		Find(&vendors).Error
	return vendors, err
}
