package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivenotify",
			Name:      "messages_sent_total",
			Help:      "Total per-recipient send attempts.",
		},
		[]string{"channel", "status"}, // status: success, failed
	)

	sendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drivenotify",
			Name:      "send_duration_seconds",
			Help:      "Duration of a single provider send.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	batchesCompletedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivenotify",
			Name:      "batches_completed_total",
			Help:      "Total dispatched batches.",
		},
		[]string{"channel"},
	)

	queueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "drivenotify",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the delivery queue.",
		},
	)
)
