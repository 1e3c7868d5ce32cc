// Package metrics defines the Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Table read metrics
	TableReadsTotal       *prometheus.CounterVec
	TableReadDuration     *prometheus.HistogramVec
	SnapshotFallbackTotal *prometheus.CounterVec

	// Lookup metrics
	LookupsTotal   *prometheus.CounterVec
	SkippedRows    *prometheus.CounterVec
	UnansweredTotal prometheus.Counter

	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		TableReadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_table_reads_total",
				Help: "Total number of knowledge-base table reads by table and status",
			},
			[]string{"table", "status"}, // status: success, error, snapshot
		),

		TableReadDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qna_table_read_duration_seconds",
				Help:    "Table read duration in seconds by table",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"table"},
		),

		SnapshotFallbackTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_snapshot_fallback_total",
				Help: "Total number of lookups served from the snapshot store by table",
			},
			[]string{"table"},
		),

		LookupsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_lookups_total",
				Help: "Total number of knowledge-base lookups by outcome",
			},
			[]string{"outcome"}, // outcome: matched, default, error
		),

		SkippedRows: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_skipped_rows_total",
				Help: "Total number of rows skipped during scans by reason",
			},
			[]string{"reason"}, // reason: no_keyword, bad_pattern, empty_reply
		),

		UnansweredTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "qna_unanswered_total",
				Help: "Total number of messages that received the default reply",
			},
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qna_webhook_duration_seconds",
				Help:    "Webhook processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"}, // event_type: message, follow
		),

		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_webhook_requests_total",
				Help: "Total number of webhook requests by event type and status",
			},
			[]string{"event_type", "status"}, // status: received, success, error, reply_error
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "qna_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"},
		),
	}

	return m
}

// RecordTableRead records a table read with status
func (m *Metrics) RecordTableRead(table, status string, duration float64) {
	m.TableReadsTotal.WithLabelValues(table, status).Inc()
	m.TableReadDuration.WithLabelValues(table).Observe(duration)
}

// RecordSnapshotFallback records a lookup served from the snapshot store
func (m *Metrics) RecordSnapshotFallback(table string) {
	m.SnapshotFallbackTotal.WithLabelValues(table).Inc()
}

// RecordLookup records a knowledge-base lookup outcome
func (m *Metrics) RecordLookup(outcome string) {
	m.LookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordSkippedRow records a row skipped during a table scan
func (m *Metrics) RecordSkippedRow(reason string) {
	m.SkippedRows.WithLabelValues(reason).Inc()
}

// RecordUnanswered records a message that fell through to the default reply
func (m *Metrics) RecordUnanswered() {
	m.UnansweredTotal.Inc()
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}
