package matching

import (
	"math"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
)

var (
	MinimumScore = decimal.NewFromInt(30)
	MaximumScore = decimal.NewFromInt(100)

	exactAmountPoints = decimal.NewFromInt(40)
	nearAmountPoints  = decimal.NewFromInt(30)
	farAmountPoints   = decimal.NewFromInt(15)
	vendorPoints      = decimal.NewFromInt(10)
	textWeight        = 20.0

	nearTolerance = decimal.RequireFromString("0.01")
	farTolerance  = decimal.RequireFromString("0.05")
)

// datePoints is ordered: the first bucket whose day limit covers the
// difference wins.
var datePoints = []struct {
	maxDays int
	points  decimal.Decimal
}{
	{0, decimal.NewFromInt(20)},
	{1, decimal.NewFromInt(15)},
	{3, decimal.NewFromInt(10)},
	{7, decimal.NewFromInt(5)},
}

// Breakdown itemizes how a score was reached. It is persisted on each
// proposed match and drives the deterministic explanation.
type Breakdown struct {
	AmountPoints        decimal.Decimal  `json:"amount_points"`
	DatePoints          decimal.Decimal  `json:"date_points"`
	TextPoints          decimal.Decimal  `json:"text_points"`
	VendorPoints        decimal.Decimal  `json:"vendor_points"`
	ExactAmount         bool             `json:"exact_amount"`
	AmountDeviation     *decimal.Decimal `json:"amount_deviation,omitempty"`
	DayDifference       *int             `json:"day_difference,omitempty"`
	Similarity          *float64         `json:"similarity,omitempty"`
	VendorInDescription bool             `json:"vendor_in_description"`
	Total               decimal.Decimal  `json:"total"`
}

// Score returns the similarity of an invoice and a transaction in [0, 100].
func Score(inv *models.Invoice, tx *models.BankTransaction) decimal.Decimal {
	return Evaluate(inv, tx).Total
}

// Evaluate scores the pair and reports every signal that contributed.
// Missing optional fields contribute nothing. inv.Vendor must be loaded for
// the vendor bonus to apply.
func Evaluate(inv *models.Invoice, tx *models.BankTransaction) Breakdown {
	b := Breakdown{
		AmountPoints: decimal.Zero,
		DatePoints:   decimal.Zero,
		TextPoints:   decimal.Zero,
		VendorPoints: decimal.Zero,
	}

	// Amount
	if inv.Amount.Equal(tx.Amount) {
		b.ExactAmount = true
		b.AmountPoints = exactAmountPoints
	} else if inv.Amount.IsPositive() {
		deviation := inv.Amount.Sub(tx.Amount).Abs().Div(inv.Amount)
		b.AmountDeviation = &deviation
		switch {
		case deviation.LessThanOrEqual(nearTolerance):
			b.AmountPoints = nearAmountPoints
		case deviation.LessThanOrEqual(farTolerance):
			b.AmountPoints = farAmountPoints
		}
	}

	// Date proximity
	if inv.InvoiceDate != nil && !tx.PostedAt.IsZero() {
		days := DayDifference(*inv.InvoiceDate, tx.PostedAt)
		b.DayDifference = &days
		for _, bucket := range datePoints {
			if days <= bucket.maxDays {
				b.DatePoints = bucket.points
				break
			}
		}
	}

	// Text similarity
	if inv.Description != nil && *inv.Description != "" && tx.Description != nil && *tx.Description != "" {
		ratio := Similarity(*inv.Description, *tx.Description)
		b.Similarity = &ratio
		b.TextPoints = decimal.NewFromFloat(ratio * textWeight)
	}

	// Vendor bonus
	if inv.Vendor != nil && tx.Description != nil &&
		strings.Contains(strings.ToLower(*tx.Description), strings.ToLower(inv.Vendor.Name)) {
		b.VendorInDescription = true
		b.VendorPoints = vendorPoints
	}

	b.Total = clamp(b.AmountPoints.Add(b.DatePoints).Add(b.TextPoints).Add(b.VendorPoints))
	return b
}

// clamp bounds a score to [0, MaximumScore].
func clamp(total decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, decimal.Min(total, MaximumScore))
}

// Similarity is the Ratcliff/Obershelp ratio of the lowercased strings,
// in [0, 1].
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b))).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// DayDifference counts whole days between two instants, flooring the
// signed difference before taking its magnitude.
func DayDifference(invoiceDate, postedAt time.Time) int {
	days := int(math.Floor(invoiceDate.Sub(postedAt).Hours() / 24))
	if days < 0 {
		days = -days
	}
	return days
}
