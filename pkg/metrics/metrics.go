// Package metrics provides Prometheus instrumentation for scenepool.
//
// # Overview
//
// PoolMetrics exposes one set of collectors shared by every pool registered
// against the same Prometheus registerer; individual pools are told apart by
// the "pool" label.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewPoolMetrics(reg)
//	p := pool.New(newBullet, pool.WithName("bullets"), pool.WithMetrics(m))
//
// All PoolMetrics methods are safe on a nil receiver, so components can call
// them unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Release outcomes used as the "outcome" label of the releases counter.
const (
	OutcomeRecycled  = "recycled"
	OutcomeDiscarded = "discarded"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
)

// PoolMetrics groups the collectors describing pool behavior.
type PoolMetrics struct {
	acquisitions       *prometheus.CounterVec // Acquire calls by source (reused/constructed)
	releases           *prometheus.CounterVec // Release path invocations by outcome
	contractViolations *prometheus.CounterVec // Loans whose entered signal was already fired
	idle               *prometheus.GaugeVec   // Instances in the free list
	onLoan             *prometheus.GaugeVec   // Instances handed out and not yet released
	tickDuration       prometheus.Histogram   // Host loop tick duration
}

// NewPoolMetrics creates and registers pool collectors on reg.
// Passing nil registers on prometheus.DefaultRegisterer.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PoolMetrics{
		acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scenepool",
				Subsystem: "pool",
				Name:      "acquisitions_total",
				Help:      "Total number of Acquire calls",
			},
			[]string{"pool", "source"},
		),
		releases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scenepool",
				Subsystem: "pool",
				Name:      "releases_total",
				Help:      "Total number of automatic releases by outcome",
			},
			[]string{"pool", "outcome"},
		),
		contractViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scenepool",
				Subsystem: "pool",
				Name:      "contract_violations_total",
				Help:      "Loans whose entered-active signal had already fired at acquire time",
			},
			[]string{"pool"},
		),
		idle: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scenepool",
				Subsystem: "pool",
				Name:      "idle_instances",
				Help:      "Number of idle instances held by the pool",
			},
			[]string{"pool"},
		),
		onLoan: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scenepool",
				Subsystem: "pool",
				Name:      "loaned_instances",
				Help:      "Number of instances handed out and not yet released",
			},
			[]string{"pool"},
		),
		tickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "scenepool",
				Subsystem: "sim",
				Name:      "tick_duration_seconds",
				Help:      "Duration of a simulation tick in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
	}
}

// ObserveAcquire records one Acquire call.
func (m *PoolMetrics) ObserveAcquire(pool string, reused bool) {
	if m == nil {
		return
	}
	source := "constructed"
	if reused {
		source = "reused"
	}
	m.acquisitions.WithLabelValues(pool, source).Inc()
}

// ObserveRelease records one invocation of the release path.
func (m *PoolMetrics) ObserveRelease(pool, outcome string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(pool, outcome).Inc()
}

// ObserveContractViolation records a loan that could not be watched.
func (m *PoolMetrics) ObserveContractViolation(pool string) {
	if m == nil {
		return
	}
	m.contractViolations.WithLabelValues(pool).Inc()
}

// SetLevels updates the idle and on-loan gauges.
func (m *PoolMetrics) SetLevels(pool string, idle, onLoan int) {
	if m == nil {
		return
	}
	m.idle.WithLabelValues(pool).Set(float64(idle))
	m.onLoan.WithLabelValues(pool).Set(float64(onLoan))
}

// ObserveTick records the duration of one host loop tick.
func (m *PoolMetrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
