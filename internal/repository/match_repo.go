package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Pair identifies an (invoice, transaction) combination.
type Pair struct {
	InvoiceID     uuid.UUID
	TransactionID uuid.UUID
}

func (r *MatchRepository) CreateBatch(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&matches).Error
}

func (r *MatchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		First(&match, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "match %s", id)
	}
	return &match, nil
}

func (r *MatchRepository) List(ctx context.Context, tenantID uuid.UUID, status *models.MatchStatus, skip, limit int) ([]models.Match, error) {
	var matches []models.Match
	query := r.db.WithContext(ctx).Scopes(ForTenant(tenantID))
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Scopes(Page(skip, limit)).Order("id ASC").Find(&matches).Error
	return matches, err
}

// ExistingPairs returns every (invoice, transaction) pair the tenant already
// has a match row for, whatever its status.
func (r *MatchRepository) ExistingPairs(ctx context.Context, tenantID uuid.UUID) (map[Pair]struct{}, error) {
	var rows []Pair
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Scopes(ForTenant(tenantID)).
		Select("invoice_id, transaction_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	pairs := make(map[Pair]struct{}, len(rows))
	for _, p := range rows {
		pairs[p] = struct{}{}
	}
	return pairs, nil
}

// HasConfirmedForTransaction reports whether any confirmed match already
// references the transaction.
func (r *MatchRepository) HasConfirmedForTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Scopes(ForTenant(tenantID)).
		Where("transaction_id = ? AND status = ?", transactionID, models.MatchConfirmed).
		Count(&count).Error
	return count > 0, err
}

// TransitionStatus performs a conditional status update and reports the
// number of rows changed. Zero means the match is gone or was not in from,
// which is how concurrent transitions of the same match lose.
func (r *MatchRepository) TransitionStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.MatchStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Scopes(ForTenant(tenantID)).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

type StatRow struct {
	Status models.MatchStatus
	Count  int64
}

// Stats counts the tenant's matches per status.
func (r *MatchRepository) Stats(ctx context.Context, tenantID uuid.UUID) ([]StatRow, error) {
	var rows []StatRow
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Scopes(ForTenant(tenantID)).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
