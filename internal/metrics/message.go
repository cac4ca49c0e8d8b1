package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed tracks messages routed through the relay.
	MessagesProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processed_total",
			Help:      "Total number of relay messages processed",
		},
		[]string{"type", "status"}, // operation/sync_request/state_broadcast/ack, delivered/buffered/dropped
	)

	// RateLimitRejections tracks messages rejected by per-session rate limiting.
	RateLimitRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of messages rejected for exceeding the per-session rate limit",
		},
		[]string{"workspace_id"},
	)

	// BadSignatureRejections tracks operations rejected for a bad signature.
	BadSignatureRejections = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "bad_signature_rejections_total",
			Help:      "Total number of operations rejected for failing signature verification",
		},
	)

	// MessageProcessingDuration tracks message processing duration.
	MessageProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Message processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to 409ms
		},
	)

	// MessageSize tracks wire message sizes.
	MessageSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "size_bytes",
			Help:      "Message size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
		},
	)
)
