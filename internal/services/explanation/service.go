package explanation

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
)

const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// Service explains matches with the remote explainer when one is
// configured and the deterministic one otherwise or on any remote error.
type Service struct {
	remote   Explainer
	fallback Explainer
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewService wires the remote explainer only when an API key is configured.
func NewService(cfg config.ExplanationConfig, logger *zap.Logger, m *metrics.Metrics) *Service {
	var remote Explainer
	if cfg.APIKey != "" {
		client := NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
		remote = NewRemoteExplainer(client, cfg.Model, cfg.MaxTokens, cfg.Timeout)
	}
	return NewServiceWith(remote, logger, m)
}

// NewServiceWith uses the given remote explainer, which may be nil.
func NewServiceWith(remote Explainer, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		remote:   remote,
		fallback: FallbackExplainer{},
		logger:   logger,
		metrics:  m,
	}
}

// Explain always returns an explanation along with its source.
func (s *Service) Explain(ctx context.Context, inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) (string, string) {
	if s.remote != nil {
		text, err := s.remote.Explain(ctx, inv, tx, score)
		if err == nil {
			s.count(SourceRemote)
			return text, SourceRemote
		}
		s.logger.Warn("remote explanation failed, using fallback",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}

	text, _ := s.fallback.Explain(ctx, inv, tx, score)
	s.count(SourceFallback)
	return text, SourceFallback
}

func (s *Service) count(source string) {
	if s.metrics != nil {
		s.metrics.Explanations.WithLabelValues(source).Inc()
	}
}
