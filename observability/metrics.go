package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed metrics
	RecordsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flashchat_records_delivered_total",
			Help: "Records appended to a session store",
		},
	)

	RecordsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flashchat_records_rejected_total",
			Help: "Malformed records skipped by a feed",
		},
	)

	FeedDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flashchat_feed_disconnects_total",
			Help: "Live subscriptions that dropped",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashchat_messages_sent_total",
			Help: "Sends by result",
		},
		[]string{"result"}, // "ok" or "failed"
	)

	// Log service metrics
	LogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashchat_log_writes_total",
			Help: "Writes handled by the log service",
		},
		[]string{"backend", "status"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flashchat_log_active_subscriptions",
			Help: "Open child-added streams on the log service",
		},
	)

	LogWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flashchat_log_write_duration_seconds",
			Help:    "Log write latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

var (
	// Process metrics
	ProcessRSSBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flashchat_process_rss_bytes",
			Help: "Resident memory of the log server",
		},
	)

	ProcessCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flashchat_process_cpu_percent",
			Help: "CPU usage of the log server since it started",
		},
	)
)
