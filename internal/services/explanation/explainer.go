// Package explanation produces human-readable rationales for proposed
// matches. A remote text-generation service is used when configured; the
// deterministic generator covers every failure.
package explanation

import (
	"context"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
)

// Explainer describes why an invoice and a transaction were paired.
// inv.Vendor should be loaded.
type Explainer interface {
	Explain(ctx context.Context, inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) (string, error)
}
