package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CryptoOperations tracks temporal-key derivation and AE operations.
	CryptoOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operations_total",
			Help:      "Total number of cryptographic operations",
		},
		[]string{"operation", "algorithm"}, // derive/encrypt/decrypt/rotate, hkdf-sha256/aes-256-gcm
	)

	// CryptoErrors tracks crypto errors by operation and taxonomy code.
	CryptoErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "errors_total",
			Help:      "Total number of cryptographic errors",
		},
		[]string{"operation", "code"}, // derive/encrypt/decrypt; KEY_DESTROYED/DECRYPTION_FAILED/...
	)

	// CryptoOperationDuration tracks crypto operation durations.
	CryptoOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operation_duration_seconds",
			Help:      "Cryptographic operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10us to 163ms
		},
		[]string{"operation", "algorithm"},
	)

	// KeysDestroyed tracks temporal keys destroyed past their grace period.
	KeysDestroyed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "keys_destroyed_total",
			Help:      "Total number of temporal keys destroyed after their grace period",
		},
	)

	// LedgerCommitments tracks commitment-ledger appends.
	LedgerCommitments = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "ledger_commitments_total",
			Help:      "Total number of commitments appended to the commitment ledger",
		},
	)
)
