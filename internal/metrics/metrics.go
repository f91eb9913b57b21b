// Package metrics exposes worker observability counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the worker's metric set. Create one per process with New.
type Metrics struct {
	ticks          *prometheus.CounterVec
	claimConflicts prometheus.Counter
	boardEdits     prometheus.Counter
	boardCreates   prometheus.Counter
	boardBlanked   prometheus.Counter
	writeDeferrals prometheus.Counter
	leaseHeld      prometheus.Gauge
}

// New registers the worker metric set on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easel_driver_ticks_total",
			Help: "Driver ticks by job name and outcome",
		}, []string{"job", "outcome"}),
		claimConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "easel_claim_conflicts_total",
			Help: "Lease renewals rejected because another worker took over",
		}),
		boardEdits: factory.NewCounter(prometheus.CounterOpts{
			Name: "easel_board_edits_total",
			Help: "Board messages edited in place",
		}),
		boardCreates: factory.NewCounter(prometheus.CounterOpts{
			Name: "easel_board_creates_total",
			Help: "Board messages created",
		}),
		boardBlanked: factory.NewCounter(prometheus.CounterOpts{
			Name: "easel_board_blanked_total",
			Help: "Surplus board messages overwritten with the placeholder",
		}),
		writeDeferrals: factory.NewCounter(prometheus.CounterOpts{
			Name: "easel_board_write_deferrals_total",
			Help: "Board writes deferred to the next tick by rate limiting",
		}),
		leaseHeld: factory.NewGauge(prometheus.GaugeOpts{
			Name: "easel_lease_held",
			Help: "1 while the worker holds a valid instance lease",
		}),
	}
}

// RecordTick counts one driver tick with its outcome ("ok", "error" or
// "idle").
func (m *Metrics) RecordTick(job, outcome string) {
	m.ticks.WithLabelValues(job, outcome).Inc()
}

// RecordClaimConflict counts a stale-token renewal rejection.
func (m *Metrics) RecordClaimConflict() {
	m.claimConflicts.Inc()
}

// RecordBoard accumulates the channel mutations one synchronization run
// applied.
func (m *Metrics) RecordBoard(edited, created, blanked, deferred int) {
	m.boardEdits.Add(float64(edited))
	m.boardCreates.Add(float64(created))
	m.boardBlanked.Add(float64(blanked))
	m.writeDeferrals.Add(float64(deferred))
}

// SetLeaseHeld flips the lease gauge.
func (m *Metrics) SetLeaseHeld(held bool) {
	if held {
		m.leaseHeld.Set(1)
		return
	}
	m.leaseHeld.Set(0)
}

// Handler returns the HTTP handler serving the default /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
