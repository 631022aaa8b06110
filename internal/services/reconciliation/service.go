// Package reconciliation proposes invoice/transaction matches for a tenant
// and moves them through their lifecycle.
package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/locking"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/explanation"
	"invoice-reconciliation-backend/internal/services/matching"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	systemActor = "system"
)

type ReconciliationService struct {
	store     *repository.Store
	locker    locking.Locker
	explainer *explanation.Service
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewReconciliationService(
	store *repository.Store,
	locker locking.Locker,
	explainer *explanation.Service,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ReconciliationService {
	return &ReconciliationService{
		store:     store,
		locker:    locker,
		explainer: explainer,
		metrics:   m,
		logger:    logger,
	}
}

// Reconcile proposes at most one new match per open invoice of the tenant
// and returns the created matches in creation order. Runs for the same
// tenant are serialized by the tenant lock and a row lock on the tenant.
func (s *ReconciliationService) Reconcile(ctx context.Context, tenantID uuid.UUID) ([]models.Match, error) {
	start := time.Now()

	release, err := s.locker.Lock(ctx, "tenant:"+tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("lock tenant %s: %w", tenantID, err)
	}
	defer release()

	created := []models.Match{}
	var run *models.ReconciliationRun

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Tenants.LockForUpdate(ctx, tenantID); err != nil {
			return err
		}

		invoices, err := tx.Invoices.ListOpen(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return nil
		}

		txs, err := tx.Transactions.ListUnmatched(ctx, tenantID)
		if err != nil {
			return err
		}
		existing, err := tx.Matches.ExistingPairs(ctx, tenantID)
		if err != nil {
			return err
		}

		picks, scored := selectCandidates(invoices, txs, existing)

		matches := make([]models.Match, 0, len(picks))
		audit := make([]models.MatchAuditLog, 0, len(picks))
		for _, c := range picks {
			details, err := json.Marshal(c.breakdown)
			if err != nil {
				return err
			}
			m := models.Match{
				ID:            models.NewID(),
				TenantID:      tenantID,
				InvoiceID:     c.invoice.ID,
				TransactionID: c.transaction.ID,
				Score:         c.breakdown.Total.Round(2),
				Status:        models.MatchProposed,
				Details:       datatypes.JSON(details),
			}
			matches = append(matches, m)
			audit = append(audit, auditEntry(&m, models.AuditProposed, systemActor, ""))
		}

		if err := tx.Matches.CreateBatch(ctx, matches); err != nil {
			return err
		}
		if err := tx.Audit.CreateBatch(ctx, audit); err != nil {
			return err
		}

		completed := time.Now().UTC()
		run = &models.ReconciliationRun{
			TenantID:               tenantID,
			InvoicesConsidered:     len(invoices),
			TransactionsConsidered: len(txs),
			PairsScored:            scored,
			MatchesProposed:        len(matches),
			Status:                 models.RunCompleted,
			StartedAt:              start.UTC(),
			CompletedAt:            &completed,
		}
		if err := tx.Runs.Create(ctx, run); err != nil {
			return err
		}

		created = matches
		return nil
	})

	s.observeRun(start, err, len(created))
	if err != nil {
		s.logger.Error("reconciliation failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.Int("matches_proposed", len(created)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if run != nil {
		fields = append(fields,
			zap.String("run_id", run.ID.String()),
			zap.Int("invoices", run.InvoicesConsidered),
			zap.Int("transactions", run.TransactionsConsidered),
			zap.Int("pairs_scored", run.PairsScored),
		)
	}
	s.logger.Info("reconciliation completed", fields...)
	return created, nil
}

// ConfirmMatch moves a proposed match to confirmed and its invoice to
// matched in one transaction. A match that is missing or no longer proposed
// is NotFound. An invoice that is no longer open, or a transaction already
// confirmed elsewhere, is a Conflict.
func (s *ReconciliationService) ConfirmMatch(ctx context.Context, tenantID, matchID uuid.UUID, actor string) (*models.Match, error) {
	var confirmed *models.Match

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Tenants.LockForUpdate(ctx, tenantID); err != nil {
			return err
		}

		match, err := proposedMatch(ctx, tx, tenantID, matchID, models.MatchConfirmed)
		if err != nil {
			return err
		}

		invoice, err := tx.Invoices.GetByID(ctx, tenantID, match.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != models.InvoiceOpen {
			return apperrors.Conflict("invoice %s is already %s", invoice.ID, invoice.Status)
		}

		taken, err := tx.Matches.HasConfirmedForTransaction(ctx, tenantID, match.TransactionID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("bank transaction %s is already confirmed in another match", match.TransactionID)
		}

		rows, err := tx.Matches.TransitionStatus(ctx, tenantID, matchID, models.MatchProposed, models.MatchConfirmed)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperrors.NotFound("proposed match %s", matchID)
		}

		rows, err = tx.Invoices.TransitionStatus(ctx, tenantID, invoice.ID, models.InvoiceOpen, models.InvoiceMatched)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperrors.Conflict("invoice %s is no longer open", invoice.ID)
		}

		match.Status = models.MatchConfirmed
		if err := tx.Audit.CreateBatch(ctx, []models.MatchAuditLog{auditEntry(match, models.AuditConfirmed, actor, "")}); err != nil {
			return err
		}

		confirmed = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MatchesConfirmed.Inc()
	}
	s.logger.Info("match confirmed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("match_id", matchID.String()),
		zap.String("invoice_id", confirmed.InvoiceID.String()),
		zap.String("transaction_id", confirmed.TransactionID.String()),
	)
	return confirmed, nil
}

// RejectMatch moves a proposed match to rejected. The pair is never
// proposed again.
func (s *ReconciliationService) RejectMatch(ctx context.Context, tenantID, matchID uuid.UUID, actor, reason string) (*models.Match, error) {
	var rejected *models.Match

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		match, err := proposedMatch(ctx, tx, tenantID, matchID, models.MatchRejected)
		if err != nil {
			return err
		}

		rows, err := tx.Matches.TransitionStatus(ctx, tenantID, matchID, models.MatchProposed, models.MatchRejected)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperrors.NotFound("proposed match %s", matchID)
		}

		match.Status = models.MatchRejected
		if err := tx.Audit.CreateBatch(ctx, []models.MatchAuditLog{auditEntry(match, models.AuditRejected, actor, reason)}); err != nil {
			return err
		}
		rejected = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match rejected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("match_id", matchID.String()),
	)
	return rejected, nil
}

// proposedMatch loads a match that may move to next. Any other state reads
// as NotFound, so a second confirmation fails the same way a missing match
// does.
func proposedMatch(ctx context.Context, tx *repository.Store, tenantID, matchID uuid.UUID, next models.MatchStatus) (*models.Match, error) {
	match, err := tx.Matches.GetByID(ctx, tenantID, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Status.CanTransition(next) {
		return nil, apperrors.NotFound("proposed match %s", matchID)
	}
	return match, nil
}

// MatchList is a page of matches plus the tenant's per-status totals.
type MatchList struct {
	Matches []models.Match               `json:"matches"`
	Stats   map[models.MatchStatus]int64 `json:"stats"`
}

func (s *ReconciliationService) ListMatches(ctx context.Context, tenantID uuid.UUID, status *models.MatchStatus, skip, limit int) (*MatchList, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, apperrors.Validation("unknown match status %q", *status)
	}
	if skip < 0 {
		return nil, apperrors.Validation("skip must not be negative")
	}

	matches, err := s.store.Matches.List(ctx, tenantID, status, skip, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Matches.Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats := map[models.MatchStatus]int64{
		models.MatchProposed:  0,
		models.MatchConfirmed: 0,
		models.MatchRejected:  0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}

	return &MatchList{Matches: matches, Stats: stats}, nil
}

func (s *ReconciliationService) GetMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*models.Match, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Matches.GetByID(ctx, tenantID, matchID)
}

func (s *ReconciliationService) AuditTrail(ctx context.Context, tenantID, matchID uuid.UUID) ([]models.MatchAuditLog, error) {
	if _, err := s.GetMatch(ctx, tenantID, matchID); err != nil {
		return nil, err
	}
	return s.store.Audit.ListByMatch(ctx, tenantID, matchID)
}

// ListRuns returns the tenant's most recent reconciliation runs first.
func (s *ReconciliationService) ListRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.ReconciliationRun, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Runs.List(ctx, tenantID, clampLimit(limit))
}

type Explanation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	TransactionID uuid.UUID       `json:"bank_transaction_id"`
	Score         decimal.Decimal `json:"score"`
	Explanation   string          `json:"explanation"`
	Source        string          `json:"source"`
}

// Explain scores the pair and describes why it would match. Remote
// failures degrade to the deterministic explanation and are not errors.
func (s *ReconciliationService) Explain(ctx context.Context, tenantID, invoiceID, transactionID uuid.UUID) (*Explanation, error) {
	if _, err := s.store.Tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	invoice, err := s.store.Invoices.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	tx, err := s.store.Transactions.GetByID(ctx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}

	score := matching.Score(invoice, tx).Round(2)
	text, source := s.explainer.Explain(ctx, invoice, tx, score)

	return &Explanation{
		InvoiceID:     invoiceID,
		TransactionID: transactionID,
		Score:         score,
		Explanation:   text,
		Source:        source,
	}, nil
}

func (s *ReconciliationService) observeRun(start time.Time, err error, proposed int) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ReconcileRuns.WithLabelValues(outcome).Inc()
	s.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	s.metrics.MatchesProposed.Add(float64(proposed))
}

func auditEntry(m *models.Match, action, actor, reason string) models.MatchAuditLog {
	if actor == "" {
		actor = systemActor
	}
	return models.MatchAuditLog{
		TenantID:      m.TenantID,
		MatchID:       m.ID,
		InvoiceID:     m.InvoiceID,
		TransactionID: m.TransactionID,
		Action:        action,
		Score:         m.Score,
		PerformedBy:   actor,
		Reason:        reason,
	}
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
