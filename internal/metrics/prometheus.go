// Package metrics метрики Prometheus конвейера SKU
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Разрешение кодов
	RuleResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_rule_resolutions_total",
			Help: "Code resolutions by the rule layer that produced them",
		},
		[]string{"layer"},
	)

	MalformedRulesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elim_malformed_learned_rules_total",
			Help: "Learned rules skipped because the token or value is malformed",
		},
	)

	PolicyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_sku_policy_outcomes_total",
			Help: "SKU creation policy outcomes",
		},
		[]string{"policy", "outcome"},
	)

	// Внешние источники
	ScraperRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_scraper_requests_total",
			Help: "Competitor catalog requests by source and status",
		},
		[]string{"source", "status"},
	)

	ScraperDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elim_scraper_duration_seconds",
			Help:    "Competitor catalog request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"source"},
	)

	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_store_writes_total",
			Help: "Record upserts by backend and status",
		},
		[]string{"backend", "status"},
	)

	// Самообучение
	FailuresLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_failures_logged_total",
			Help: "Failure events appended to the self-heal log",
		},
		[]string{"reason"},
	)

	RulesInjectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elim_rules_injected_total",
			Help: "Learned rules injected by the miner",
		},
	)

	RuleConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elim_rule_conflicts_total",
			Help: "Dominant suggestions that disagree with an already learned rule",
		},
	)

	MinerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_miner_runs_total",
			Help: "Self-heal miner runs by status",
		},
		[]string{"status"},
	)

	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_http_errors_total",
			Help: "HTTP error responses by status code",
		},
		[]string{"code"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elim_notifications_total",
			Help: "Operator webhook notifications by status",
		},
		[]string{"status"},
	)
)

// ObserveScraper записывает результат запроса к источнику
func ObserveScraper(source, status string, started time.Time) {
	ScraperRequestsTotal.WithLabelValues(source, status).Inc()
	ScraperDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}
