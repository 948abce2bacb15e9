package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPoolMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetrics(reg)

	m.ObserveAcquire("bullets", true)
	m.ObserveAcquire("bullets", false)
	m.ObserveAcquire("bullets", false)
	m.ObserveRelease("bullets", OutcomeRecycled)
	m.ObserveRelease("bullets", OutcomeDiscarded)
	m.ObserveContractViolation("bullets")
	m.SetLevels("bullets", 3, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("bullets", "reused")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("bullets", "constructed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("bullets", OutcomeRecycled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("bullets", OutcomeDiscarded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contractViolations.WithLabelValues("bullets")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.idle.WithLabelValues("bullets")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.onLoan.WithLabelValues("bullets")))
}

func TestPoolMetricsNilReceiver(t *testing.T) {
	var m *PoolMetrics

	assert.NotPanics(t, func() {
		m.ObserveAcquire("p", true)
		m.ObserveRelease("p", OutcomeStale)
		m.ObserveContractViolation("p")
		m.SetLevels("p", 1, 1)
		m.ObserveTick(time.Millisecond)
	})
}

func TestPoolMetricsTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetrics(reg)

	m.ObserveTick(2 * time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "scenepool_sim_tick_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)

	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
