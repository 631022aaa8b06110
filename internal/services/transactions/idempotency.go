package transactions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// HashBatch fingerprints a batch as submitted, before any rounding or
// defaulting, so payloads that differ only in what import normalizes still
// hash differently. Each record is serialized with sorted field names and
// the records are hashed in submitted order, so reordering a batch changes
// its hash. Inputs must have passed validation.
func HashBatch(inputs []TransactionInput) (string, error) {
	canonical := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		canonical[i] = map[string]any{
			"amount":      in.Amount.String(),
			"currency":    in.Currency,
			"description": in.Description,
			"external_id": in.ExternalID,
			"posted_at":   in.PostedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	// encoding/json sorts map keys
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Guard resolves idempotency keys against stored records.
type Guard struct{}

// Lookup returns the memoized result for (tenant, key), or nil when the key
// is unused. A key reused with a different payload is a Conflict.
func (Guard) Lookup(ctx context.Context, store *repository.Store, tenantID uuid.UUID, key, hash string) (*ImportResult, error) {
	record, err := store.Idempotency.Find(ctx, tenantID, key)
	if err != nil || record == nil {
		return nil, err
	}
	if record.RequestHash != hash {
		return nil, apperrors.Conflict("idempotency key %q already used with different payload", key)
	}

	txs, err := store.Transactions.ListByIDs(ctx, tenantID, record.TransactionIDs)
	if err != nil {
		return nil, err
	}
	return &ImportResult{Transactions: txs, Duplicate: true}, nil
}

// Record memoizes the ids created under key. It fails with
// gorm.ErrDuplicatedKey when another request recorded the key first.
func (Guard) Record(ctx context.Context, store *repository.Store, tenantID uuid.UUID, key, hash string, txs []models.BankTransaction) error {
	ids := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return store.Idempotency.Create(ctx, &models.IdempotencyRecord{
		TenantID:       tenantID,
		IdempotencyKey: key,
		RequestHash:    hash,
		TransactionIDs: ids,
	})
}
