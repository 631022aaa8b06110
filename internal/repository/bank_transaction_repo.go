package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

// CreateBatch inserts all rows in one statement.
func (r *BankTransactionRepository) CreateBatch(ctx context.Context, txs []models.BankTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&txs).Error
}

func (r *BankTransactionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "bank transaction %s", id)
	}
	return &tx, nil
}

// ListByIDs returns the tenant's transactions with the given ids, in the
// order the ids were given. Unknown ids are skipped.
func (r *BankTransactionRepository) ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.BankTransaction, error) {
	if len(ids) == 0 {
		return []models.BankTransaction{}, nil
	}

	var rows []models.BankTransaction
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.BankTransaction, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.BankTransaction, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// ListUnmatched returns the tenant's transactions that no confirmed match
// references, in id order. Transactions only in proposed matches stay
// eligible.
func (r *BankTransactionRepository) ListUnmatched(ctx context.Context, tenantID uuid.UUID) ([]models.BankTransaction, error) {
	confirmed := r.db.Model(&models.Match{}).
		Select("transaction_id").
		Where("tenant_id = ? AND status = ?", tenantID, models.MatchConfirmed)

	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Where("id NOT IN (?)", confirmed).
		Order("id ASC").
		Find(&txs).Error
	return txs, err
}

// List pages through the tenant's transactions by id cursor. It returns the
// page, the cursor for the next page and whether more rows exist.
func (r *BankTransactionRepository) List(ctx context.Context, tenantID uuid.UUID, cursor *uuid.UUID, limit int) ([]models.BankTransaction, string, bool, error) {
	var txs []models.BankTransaction
	query := r.db.WithContext(ctx).
		Scopes(ForTenant(tenantID)).
		Order("id ASC").
		Limit(limit + 1)

	if cursor != nil {
		query = query.Where("id > ?", *cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string

	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}

	return txs, nextCursor, hasMore, nil
}
