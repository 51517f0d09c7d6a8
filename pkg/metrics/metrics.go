// Package metrics exposes the Prometheus registry used by scorecard-search.
// Metrics are defined in their own packages (client, dispatch, search,
// checkpoint) and registered there via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry every package registers with.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Lookup Metrics (pkg/client):
//   - scorecard_lookups_total{outcome} (Counter): lookups by outcome (accepted, rejected, failed)
//   - scorecard_lookup_duration_seconds (Histogram): lookup duration
//   - scorecard_lookup_errors_total{class} (Counter): failures by class (network, decode, request)
//   - scorecard_lookup_status_total{status} (Counter): responses by HTTP status
//
// Batch Metrics (pkg/dispatch):
//   - scorecard_batches_total (Counter): day batches dispatched
//   - scorecard_batch_duration_seconds (Histogram): time to the batch barrier
//   - scorecard_batch_failed_lookups (Histogram): lookups per batch with no result
//
// Search Metrics (pkg/search):
//   - scorecard_identifiers_searched_total (Counter): identifiers finished
//   - scorecard_matches_total (Counter): accepted records found
//   - scorecard_current_identifier (Gauge): identifier being searched
//
// Checkpoint Metrics (pkg/checkpoint):
//   - scorecard_checkpoint_errors_total{operation} (Counter): store errors
//
// Example Prometheus Queries:
//
//   # Lookup failure ratio
//   sum(rate(scorecard_lookups_total{outcome="failed"}[5m])) /
//   sum(rate(scorecard_lookups_total[5m]))
//
//   # Identifiers per hour
//   rate(scorecard_identifiers_searched_total[1h]) * 3600
//
//   # P95 batch latency
//   histogram_quantile(0.95, rate(scorecard_batch_duration_seconds_bucket[5m]))
