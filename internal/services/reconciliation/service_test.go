package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/locking"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/explanation"
	"invoice-reconciliation-backend/internal/services/matching"
	"invoice-reconciliation-backend/internal/testutil"
)

var day = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	svc    *ReconciliationService
	tenant *models.Tenant
	ctx    context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	m := metrics.New(nil)
	svc := NewReconciliationService(
		repository.NewStore(db),
		locking.NewLocalLocker(),
		explanation.NewServiceWith(nil, logger, m),
		logger,
		m,
	)
	return &fixture{
		db:     db,
		svc:    svc,
		tenant: testutil.CreateTenant(t, db, "Acme Books"),
		ctx:    context.Background(),
	}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) invoiceStatus(t *testing.T, id uuid.UUID) models.InvoiceStatus {
	t.Helper()
	var inv models.Invoice
	require.NoError(t, f.db.First(&inv, "id = ?", id).Error)
	return inv.Status
}

func TestReconcile_OfficeSuppliesScenario(t *testing.T) {
	f := setup(t)
	vendor := testutil.CreateVendor(t, f.db, f.tenant.ID, "Acme")
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{
		VendorID:    &vendor.ID,
		Date:        &day,
		Description: "Office supplies",
	})
	tx := testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "Payment to Acme - Office supplies")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, inv.ID, m.InvoiceID)
	assert.Equal(t, tx.ID, m.TransactionID)
	assert.Equal(t, models.MatchProposed, m.Status)
	assert.True(t, decimal.RequireFromString("82.5").Equal(m.Score), "score %s", m.Score)

	var breakdown matching.Breakdown
	require.NoError(t, json.Unmarshal(m.Details, &breakdown))
	assert.True(t, breakdown.ExactAmount)
	assert.True(t, breakdown.VendorInDescription)

	// reconcile never mutates invoices
	assert.Equal(t, models.InvoiceOpen, f.invoiceStatus(t, inv.ID))

	runs, err := f.svc.ListRuns(f.ctx, f.tenant.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].MatchesProposed)
	assert.Equal(t, 1, runs[0].PairsScored)

	trail, err := f.svc.AuditTrail(f.ctx, f.tenant.ID, m.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditProposed, trail[0].Action)
}

func TestReconcile_NoOpenInvoicesWritesNothing(t *testing.T) {
	f := setup(t)
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "10.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	assert.Zero(t, f.count(t, &models.Match{}))
	assert.Zero(t, f.count(t, &models.ReconciliationRun{}))
	assert.Zero(t, f.count(t, &models.MatchAuditLog{}))
}

func TestReconcile_UnknownTenant(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Reconcile(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReconcile_BelowThresholdNotProposed(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "106.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReconcile_ThresholdIsInclusive(t *testing.T) {
	f := setup(t)
	// 1% off with no date or text: exactly 30 points
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "101.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(matches[0].Score))
}

func TestReconcile_TieKeepsFirstTransaction(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "75.00", testutil.InvoiceOpts{Date: &day})
	first := testutil.CreateTransaction(t, f.db, f.tenant.ID, "75.00", day, "")
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "75.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, first.ID, matches[0].TransactionID)
}

func TestReconcile_PicksBestPerInvoiceIndependently(t *testing.T) {
	f := setup(t)
	a := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	b := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day.Add(-5*24*time.Hour), "")
	best := testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// greedy per invoice: both invoices pick the same best transaction
	assert.Equal(t, a.ID, matches[0].InvoiceID)
	assert.Equal(t, b.ID, matches[1].InvoiceID)
	assert.Equal(t, best.ID, matches[0].TransactionID)
	assert.Equal(t, best.ID, matches[1].TransactionID)
}

func TestReconcile_NeverReproposesExistingPair(t *testing.T) {
	f := setup(t)
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	strong := testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")
	weak := testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day.Add(10*24*time.Hour), "")

	first, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, strong.ID, first[0].TransactionID)

	second, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, inv.ID, second[0].InvoiceID)
	assert.Equal(t, weak.ID, second[0].TransactionID)

	third, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, third)
	assert.EqualValues(t, 2, f.count(t, &models.Match{}))
}

func TestReconcile_TenantIsolation(t *testing.T) {
	f := setup(t)
	other := testutil.CreateTenant(t, f.db, "Other")
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, other.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReconcile_ConcurrentRunsDoNotDoublePropose(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Reconcile(f.ctx, f.tenant.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.count(t, &models.Match{}))
}

func TestConfirmMatch(t *testing.T) {
	f := setup(t)
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	confirmed, err := f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MatchConfirmed, confirmed.Status)
	assert.Equal(t, models.InvoiceMatched, f.invoiceStatus(t, inv.ID))

	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "alice")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := f.svc.GetMatch(f.ctx, f.tenant.ID, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchConfirmed, stored.Status)

	trail, err := f.svc.AuditTrail(f.ctx, f.tenant.ID, matches[0].ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditConfirmed, trail[1].Action)
	assert.Equal(t, "alice", trail[1].PerformedBy)
}

func TestConfirmMatch_WrongTenantOrUnknown(t *testing.T) {
	f := setup(t)
	other := testutil.CreateTenant(t, f.db, "Other")
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmMatch(f.ctx, other.ID, matches[0].ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConfirmMatch_ConcurrentExactlyOneWins(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "")
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict), err)
	}
	assert.Equal(t, 1, success)
}

func TestConfirmMatch_ConfirmedTransactionLeavesPool(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "")
	require.NoError(t, err)

	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	again, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConfirmMatch_SecondProposalForInvoiceConflicts(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day.Add(2*24*time.Hour), "")

	first, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	second, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, first[0].ID, "")
	require.NoError(t, err)
	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, second[0].ID, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	stored, err := f.svc.GetMatch(f.ctx, f.tenant.ID, second[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchProposed, stored.Status)
}

func TestConfirmMatch_DeletedInvoice(t *testing.T) {
	f := setup(t)
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.NoError(t, repository.NewInvoiceRepository(f.db).Delete(f.ctx, f.tenant.ID, inv.ID))

	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := f.svc.GetMatch(f.ctx, f.tenant.ID, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchProposed, stored.Status)
}

func TestRejectMatch(t *testing.T) {
	f := setup(t)
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)

	rejected, err := f.svc.RejectMatch(f.ctx, f.tenant.ID, matches[0].ID, "bob", "duplicate payment")
	require.NoError(t, err)
	assert.Equal(t, models.MatchRejected, rejected.Status)
	assert.Equal(t, models.InvoiceOpen, f.invoiceStatus(t, inv.ID))

	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// rejected pairs are not proposed again
	again, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestListMatches(t *testing.T) {
	f := setup(t)
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateInvoice(t, f.db, f.tenant.ID, "200.00", testutil.InvoiceOpts{Date: &day})
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "")
	testutil.CreateTransaction(t, f.db, f.tenant.ID, "200.00", day, "")

	matches, err := f.svc.Reconcile(f.ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	_, err = f.svc.ConfirmMatch(f.ctx, f.tenant.ID, matches[0].ID, "")
	require.NoError(t, err)

	all, err := f.svc.ListMatches(f.ctx, f.tenant.ID, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all.Matches, 2)
	assert.EqualValues(t, 1, all.Stats[models.MatchProposed])
	assert.EqualValues(t, 1, all.Stats[models.MatchConfirmed])
	assert.EqualValues(t, 0, all.Stats[models.MatchRejected])

	status := models.MatchConfirmed
	confirmed, err := f.svc.ListMatches(f.ctx, f.tenant.ID, &status, 0, 0)
	require.NoError(t, err)
	require.Len(t, confirmed.Matches, 1)
	assert.Equal(t, matches[0].ID, confirmed.Matches[0].ID)

	bad := models.MatchStatus("maybe")
	_, err = f.svc.ListMatches(f.ctx, f.tenant.ID, &bad, 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestExplain_Fallback(t *testing.T) {
	f := setup(t)
	vendor := testutil.CreateVendor(t, f.db, f.tenant.ID, "Acme")
	inv := testutil.CreateInvoice(t, f.db, f.tenant.ID, "100.00", testutil.InvoiceOpts{
		VendorID:    &vendor.ID,
		Date:        &day,
		Description: "Office supplies",
	})
	tx := testutil.CreateTransaction(t, f.db, f.tenant.ID, "100.00", day, "Payment to Acme - Office supplies")

	got, err := f.svc.Explain(f.ctx, f.tenant.ID, inv.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, explanation.SourceFallback, got.Source)
	assert.True(t, decimal.RequireFromString("82.5").Equal(got.Score))
	assert.Equal(t,
		"This match (score: 82.5/100) is suggested because of: exact amount match, same date, similar descriptions, vendor name appears in transaction.",
		got.Explanation)

	_, err = f.svc.Explain(f.ctx, f.tenant.ID, inv.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
