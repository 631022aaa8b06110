package explanation

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/services/matching"
)

var onePercent = decimal.RequireFromString("0.01")

// FallbackExplainer lists the matched signals. It never fails.
type FallbackExplainer struct{}

func (FallbackExplainer) Explain(_ context.Context, inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) (string, error) {
	return Describe(inv, tx, score), nil
}

// Describe renders the deterministic explanation.
func Describe(inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) string {
	var reasons []string

	if inv.Amount.Equal(tx.Amount) {
		reasons = append(reasons, "exact amount match")
	} else if inv.Amount.IsPositive() &&
		inv.Amount.Sub(tx.Amount).Abs().Div(inv.Amount).LessThanOrEqual(onePercent) {
		reasons = append(reasons, "amount within 1% tolerance")
	}

	if inv.InvoiceDate != nil && !tx.PostedAt.IsZero() {
		switch days := matching.DayDifference(*inv.InvoiceDate, tx.PostedAt); {
		case days == 0:
			reasons = append(reasons, "same date")
		case days <= 3:
			reasons = append(reasons, fmt.Sprintf("dates within %d days", days))
		}
	}

	if inv.Description != nil && *inv.Description != "" && tx.Description != nil && *tx.Description != "" {
		if matching.Similarity(*inv.Description, *tx.Description) > 0.5 {
			reasons = append(reasons, "similar descriptions")
		}
	}

	if inv.Vendor != nil && tx.Description != nil &&
		strings.Contains(strings.ToLower(*tx.Description), strings.ToLower(inv.Vendor.Name)) {
		reasons = append(reasons, "vendor name appears in transaction")
	}

	s := score.InexactFloat64()
	if len(reasons) == 0 {
		return fmt.Sprintf("This match (score: %.1f/100) is suggested based on partial matching criteria.", s)
	}
	return fmt.Sprintf("This match (score: %.1f/100) is suggested because of: %s.", s, strings.Join(reasons, ", "))
}
