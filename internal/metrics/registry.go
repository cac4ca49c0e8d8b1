// Package metrics collects internal operational counters and histograms for
// every numbered EECP component (temporal keys, authenticated encryption,
// operation codec, client session, relay core, temporal cleanup). Metrics
// are registered to a private Registry rather than the global
// prometheus.DefaultRegisterer so a process embedding more than one relay
// instance never collides on metric names; HTTP exposition of this
// registry (a `/metrics` endpoint) is intentionally not provided here.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "eecp"

// Registry is the private collector registry every metric in this package
// registers to via promauto.With(Registry).
var Registry = prometheus.NewRegistry()
