package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated tracks total client sessions created.
	SessionsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of client sessions created",
		},
		[]string{"status"}, // success, failure
	)

	// SessionsActive tracks currently connected client sessions.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently connected client sessions",
		},
	)

	// SessionsReconnected tracks successful reconnects after a drop.
	SessionsReconnected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "reconnected_total",
			Help:      "Total number of client sessions that reconnected after a connection drop",
		},
	)

	// SessionsClosed tracks closed sessions.
	SessionsClosed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total number of closed sessions",
		},
	)

	// OfflineBufferDepth tracks the size of a session's offline FIFO buffer.
	OfflineBufferDepth = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "offline_buffer_depth",
			Help:      "Depth of the offline operation buffer at flush time",
			Buckets:   prometheus.LinearBuckets(0, 100, 10), // 0..1000
		},
	)

	// SessionDuration tracks session operation duration.
	SessionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Session operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"operation"}, // apply_local, apply_remote, reconnect
	)
)
