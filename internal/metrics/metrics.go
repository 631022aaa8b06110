// Package metrics defines the Prometheus collectors the service exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReconcileRuns        *prometheus.CounterVec
	ReconcileDuration    prometheus.Histogram
	MatchesProposed      prometheus.Counter
	MatchesConfirmed     prometheus.Counter
	TransactionImports   *prometheus.CounterVec
	TransactionsImported prometheus.Counter
	Explanations         *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg builds unregistered
// collectors, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_reconcile_runs_total",
			Help: "Reconciliation runs by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recon_reconcile_duration_seconds",
			Help:    "Duration of reconciliation runs",
			Buckets: prometheus.DefBuckets,
		}),
		MatchesProposed: f.NewCounter(prometheus.CounterOpts{
			Name: "recon_matches_proposed_total",
			Help: "Matches proposed by reconciliation",
		}),
		MatchesConfirmed: f.NewCounter(prometheus.CounterOpts{
			Name: "recon_matches_confirmed_total",
			Help: "Matches confirmed",
		}),
		TransactionImports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_transaction_imports_total",
			Help: "Bank transaction import requests by result (created, replayed, conflict, invalid)",
		}, []string{"result"}),
		TransactionsImported: f.NewCounter(prometheus.CounterOpts{
			Name: "recon_transactions_imported_total",
			Help: "Bank transactions inserted",
		}),
		Explanations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_explanations_total",
			Help: "Match explanations by source (remote, fallback)",
		}, []string{"source"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_http_requests_total",
			Help: "HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recon_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
