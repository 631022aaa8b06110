// Package transactions imports and lists bank transactions.
package transactions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

const (
	DefaultCurrency = "USD"
	DefaultLimit    = 100
	MaxLimit        = 1000
)

// TransactionInput is one record of an import request.
type TransactionInput struct {
	ExternalID  *string          `json:"external_id"`
	PostedAt    *time.Time       `json:"posted_at"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Description *string          `json:"description"`
}

type ImportResult struct {
	Transactions []models.BankTransaction
	Duplicate    bool
}

type Page struct {
	Transactions []models.BankTransaction `json:"transactions"`
	NextCursor   string                   `json:"next_cursor,omitempty"`
	HasMore      bool                     `json:"has_more"`
}

type Service struct {
	store   *repository.Store
	guard   Guard
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewService(store *repository.Store, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m}
}

// Import inserts a batch of transactions for the tenant. With a non-empty
// key, a retried identical batch returns the originally created rows and
// Duplicate=true; a different batch under the same key is a Conflict.
func (s *Service) Import(ctx context.Context, tenantID uuid.UUID, inputs []TransactionInput, key string) (*ImportResult, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	rows, err := buildTransactions(tenantID, inputs)
	if err != nil {
		s.count("invalid", 0)
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		if err := s.store.Transactions.CreateBatch(ctx, rows); err != nil {
			return nil, err
		}
		s.count("created", len(rows))
		return &ImportResult{Transactions: rows}, nil
	}

	hash, err := HashBatch(inputs)
	if err != nil {
		return nil, err
	}

	var result *ImportResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		replayed, err := s.guard.Lookup(ctx, tx, tenantID, key, hash)
		if err != nil {
			return err
		}
		if replayed != nil {
			result = replayed
			return nil
		}

		if err := tx.Transactions.CreateBatch(ctx, rows); err != nil {
			return err
		}
		if err := s.guard.Record(ctx, tx, tenantID, key, hash, rows); err != nil {
			return err
		}
		result = &ImportResult{Transactions: rows}
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent request with the same key committed first.
		s.logger.Info("idempotency key raced, resolving against stored record",
			zap.String("tenant_id", tenantID.String()),
			zap.String("key", key),
		)
		result, err = s.guard.Lookup(ctx, s.store, tenantID, key, hash)
		if err == nil && result == nil {
			err = apperrors.Conflict("idempotency key %q is in use", key)
		}
	}

	switch {
	case errors.Is(err, apperrors.ErrConflict):
		s.count("conflict", 0)
		return nil, err
	case err != nil:
		return nil, err
	case result.Duplicate:
		s.count("replayed", 0)
	default:
		s.count("created", len(result.Transactions))
	}
	return result, nil
}

// List pages through the tenant's transactions in id order. cursor is the
// NextCursor of the previous page, or empty for the first page.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*Page, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	var after *uuid.UUID
	if cursor != "" {
		id, err := uuid.Parse(cursor)
		if err != nil {
			return nil, apperrors.Validation("invalid cursor %q", cursor)
		}
		after = &id
	}

	txs, next, hasMore, err := s.store.Transactions.List(ctx, tenantID, after, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return &Page{Transactions: txs, NextCursor: next, HasMore: hasMore}, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.BankTransaction, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Transactions.GetByID(ctx, tenantID, id)
}

func buildTransactions(tenantID uuid.UUID, inputs []TransactionInput) ([]models.BankTransaction, error) {
	rows := make([]models.BankTransaction, 0, len(inputs))
	for i, in := range inputs {
		if in.PostedAt == nil || in.PostedAt.IsZero() {
			return nil, apperrors.Validation("transactions[%d].posted_at is required", i)
		}
		if in.Amount == nil {
			return nil, apperrors.Validation("transactions[%d].amount is required", i)
		}

		currency := strings.TrimSpace(in.Currency)
		if currency == "" {
			currency = DefaultCurrency
		}

		rows = append(rows, models.BankTransaction{
			ID:          models.NewID(),
			TenantID:    tenantID,
			ExternalID:  in.ExternalID,
			PostedAt:    in.PostedAt.UTC(),
			Amount:      in.Amount.Round(2),
			Currency:    currency,
			Description: in.Description,
		})
	}
	return rows, nil
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

func (s *Service) count(result string, inserted int) {
	if s.metrics == nil {
		return
	}
	s.metrics.TransactionImports.WithLabelValues(result).Inc()
	if inserted > 0 {
		s.metrics.TransactionsImported.Add(float64(inserted))
	}
}
