// Package metrics exposes the subsystem's observability counters.
// Invariant violations and policy failures are reported here and nowhere
// else; they are never surfaced to end users.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks live transport connections
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presence_connections_active",
		Help: "Number of live transport connections.",
	})

	// StatusChanges counts effective status transitions by resulting status
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_status_changes_total",
		Help: "Total effective presence status transitions.",
	}, []string{"status"})

	// BroadcastEvents counts per-viewer presence events actually delivered
	BroadcastEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_broadcast_events_total",
		Help: "Total per-viewer presence change events delivered.",
	})

	// SweepRemoved counts connections collected by the idle sweep
	SweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_sweep_removed_total",
		Help: "Total stale connections removed by the idle sweep.",
	})

	// AutoAwayTransitions counts forced online-to-away downgrades
	AutoAwayTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_auto_away_total",
		Help: "Total automatic online-to-away downgrades.",
	})

	// PolicyFailures counts fail-closed visibility resolutions
	PolicyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_policy_failures_total",
		Help: "Total visibility resolutions that failed closed due to collaborator errors.",
	})

	// Reconciliations counts self-healed connection-count drifts
	Reconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_reconciliations_total",
		Help: "Total connection-count drifts detected and corrected.",
	})
)

// HTTPHandler returns the /metrics endpoint handler
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
