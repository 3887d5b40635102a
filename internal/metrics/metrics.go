// Package metrics registers the Prometheus collectors of the data-access layer
// with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "questionbank"

// TableStoreRequestsTotal counts table-store requests.
// Labels:
//   - method: HTTP method
//   - outcome: "ok", "http_error" or "transport_error"
var TableStoreRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tablestore_requests_total",
		Help:      "Total number of table-store requests, by method and outcome.",
	},
	[]string{"method", "outcome"},
)

// TableStoreRequestDuration measures table-store round trips.
var TableStoreRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tablestore_request_duration_seconds",
		Help:      "Duration of table-store requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// LookupCacheTotal counts join-cache lookups.
// Labels:
//   - table: "categories", "difficulties" or "users"
//   - result: "hit", "miss" or "error"
var LookupCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookup_cache_total",
		Help:      "Join-resolution cache lookups, by table and result.",
	},
	[]string{"table", "result"},
)

// ProbeAttemptsTotal counts socket probes and handshake race attempts.
// Labels:
//   - kind: "probe" or "race"
//   - port: candidate port
//   - result: "ok", "failed" or "cancelled"
var ProbeAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probe_attempts_total",
		Help:      "Connection probe and race attempts, by kind, port and result.",
	},
	[]string{"kind", "port", "result"},
)

// SelectedBackend is 1 for the active backend mode and 0 for the other.
var SelectedBackend = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "selected_backend",
		Help:      "Currently selected backend mode (1 = active).",
	},
	[]string{"mode"},
)
