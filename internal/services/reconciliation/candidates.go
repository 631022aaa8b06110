package reconciliation

import (
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/matching"
)

type candidate struct {
	invoice     *models.Invoice
	transaction *models.BankTransaction
	breakdown   matching.Breakdown
}

// selectCandidates picks, per invoice, the transaction with the strictly
// highest score at or above the minimum. Pairs already in existing are
// skipped. Ties keep the transaction seen first, so the input order decides.
// It returns the picks in invoice order and the number of pairs scored.
func selectCandidates(invoices []models.Invoice, txs []models.BankTransaction, existing map[repository.Pair]struct{}) ([]candidate, int) {
	var picks []candidate
	scored := 0

	for i := range invoices {
		inv := &invoices[i]

		var best *candidate
		bestScore := decimal.Zero

		for j := range txs {
			tx := &txs[j]
			if _, seen := existing[repository.Pair{InvoiceID: inv.ID, TransactionID: tx.ID}]; seen {
				continue
			}

			b := matching.Evaluate(inv, tx)
			scored++

			if b.Total.GreaterThan(bestScore) && b.Total.GreaterThanOrEqual(matching.MinimumScore) {
				bestScore = b.Total
				best = &candidate{invoice: inv, transaction: tx, breakdown: b}
			}
		}

		if best != nil {
			picks = append(picks, *best)
		}
	}
	return picks, scored
}
