package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkspacesActive tracks workspaces currently in the active state.
	WorkspacesActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspaces",
			Name:      "active",
			Help:      "Number of workspaces currently active",
		},
	)

	// WorkspaceTransitions tracks workspace lifecycle transitions.
	WorkspaceTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspaces",
			Name:      "transitions_total",
			Help:      "Total number of workspace lifecycle transitions",
		},
		[]string{"to"}, // active, expired, revoked
	)

	// ParticipantsActive tracks authenticated participants across all workspaces.
	ParticipantsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspaces",
			Name:      "participants_active",
			Help:      "Number of authenticated participants across all active workspaces",
		},
	)

	// CleanupSweepDuration tracks the duration of each temporal cleanup sweep.
	CleanupSweepDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a temporal cleanup sweep in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 4s
		},
	)

	// CleanupSweeps counts completed sweeps.
	CleanupSweeps = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "sweeps_total",
			Help:      "Total number of temporal cleanup sweeps run",
		},
	)

	// BuffersPurged tracks offline buffers purged for exceeding their TTL.
	BuffersPurged = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "buffers_purged_total",
			Help:      "Total number of offline buffers purged for exceeding the retention window",
		},
	)
)
