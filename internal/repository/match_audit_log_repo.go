package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type MatchAuditLogRepository struct {
	db *gorm.DB
}

func NewMatchAuditLogRepository(db *gorm.DB) *MatchAuditLogRepository {
	return &MatchAuditLogRepository{db: db}
}

func (r *MatchAuditLogRepository) CreateBatch(ctx context.Context, entries []models.MatchAuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *MatchAuditLogRepository) ListByMatch(ctx context.Context, tenantID, matchID uuid.UUID) ([]models.MatchAuditLog, error) {
	var entries []models.MatchAuditLog
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Where("match_id = ?", matchID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
