package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/scenepool/pkg/lifecycle"
	"github.com/ajitpratap0/scenepool/pkg/metrics"
	"github.com/ajitpratap0/scenepool/pkg/scene"
	"github.com/ajitpratap0/scenepool/pkg/testutil"
)

const (
	waitFor = time.Second
	tick    = time.Millisecond
	quiet   = 50 * time.Millisecond
)

type fixture struct {
	pool  *Pool[*scene.Component]
	tree  *scene.Tree
	built atomic.Int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{}
	log := zaptest.NewLogger(t)
	opts = append([]Option{WithLogger(log)}, opts...)
	f.pool = New(func() *scene.Component {
		f.built.Add(1)
		return scene.NewComponent()
	}, opts...)
	f.tree = scene.NewTree(scene.WithLogger(log))
	t.Cleanup(func() { _ = f.pool.Close() })
	return f
}

// cycle attaches and detaches c once.
func (f *fixture) cycle(t *testing.T, c *scene.Component) {
	t.Helper()
	require.NoError(t, f.tree.Attach(c))
	require.NoError(t, f.tree.Detach(c))
}

func waitAvailable(t *testing.T, p *Pool[*scene.Component], want int) {
	t.Helper()
	testutil.WaitForIdle(t, p, want)
}

func TestNewDefaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, DefaultCapacity, f.pool.Capacity())
	assert.Equal(t, "default", f.pool.Name())
	assert.Zero(t, f.pool.AvailableCount())
	assert.Zero(t, f.built.Load())
}

func TestNewWarmsUp(t *testing.T) {
	f := newFixture(t, WithCapacity(10), WithInitialCount(4))

	assert.Equal(t, 4, f.pool.AvailableCount())
	assert.Equal(t, int64(4), f.built.Load())
}

func TestNewClampsInitialCount(t *testing.T) {
	f := newFixture(t, WithCapacity(3), WithInitialCount(10))

	assert.Equal(t, 3, f.pool.AvailableCount())
	assert.Equal(t, int64(3), f.built.Load())
}

func TestNegativeOptionsClamp(t *testing.T) {
	f := newFixture(t, WithCapacity(-5), WithInitialCount(-1))

	assert.Zero(t, f.pool.Capacity())
	assert.Zero(t, f.pool.AvailableCount())
}

func TestAcquireBuildsWhenEmpty(t *testing.T) {
	f := newFixture(t)

	a := f.pool.Acquire()
	b := f.pool.Acquire()

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	assert.Equal(t, int64(2), f.built.Load())

	stats := f.pool.Stats()
	assert.Equal(t, uint64(2), stats.Acquired)
	assert.Equal(t, uint64(2), stats.Constructed)
	assert.Zero(t, stats.Reused)
	assert.Equal(t, 2, stats.Watched)
}

func TestAcquireTakesFromFreeList(t *testing.T) {
	f := newFixture(t, WithCapacity(4), WithInitialCount(2))

	f.pool.Acquire()
	assert.Equal(t, 1, f.pool.AvailableCount())
	assert.Equal(t, int64(2), f.built.Load())
}

func TestLIFOOrder(t *testing.T) {
	f := newFixture(t)

	a, b, c := f.pool.Acquire(), f.pool.Acquire(), f.pool.Acquire()
	for i, obj := range []*scene.Component{a, b, c} {
		f.cycle(t, obj)
		waitAvailable(t, f.pool, i+1)
	}

	assert.Same(t, c, f.pool.Acquire())
	assert.Same(t, b, f.pool.Acquire())
	assert.Same(t, a, f.pool.Acquire())
	assert.Equal(t, int64(3), f.built.Load())
}

func TestFullPoolDiscards(t *testing.T) {
	f := newFixture(t, WithCapacity(2))

	objs := []*scene.Component{f.pool.Acquire(), f.pool.Acquire(), f.pool.Acquire()}
	for _, obj := range objs {
		f.cycle(t, obj)
	}
	require.Eventually(t, func() bool {
		s := f.pool.Stats()
		return s.Recycled+s.Discarded == 3
	}, waitFor, tick)

	assert.Equal(t, 2, f.pool.AvailableCount())
	assert.Equal(t, uint64(1), f.pool.Stats().Discarded)

	f.pool.Acquire()
	f.pool.Acquire()
	fourth := f.pool.Acquire()

	assert.NotContains(t, objs, fourth)
	assert.Equal(t, int64(4), f.built.Load())
}

func TestZeroCapacityNeverRetains(t *testing.T) {
	f := newFixture(t, WithCapacity(0))

	c := f.pool.Acquire()
	f.cycle(t, c)

	require.Eventually(t, func() bool { return f.pool.Stats().Discarded == 1 }, waitFor, tick)
	assert.Zero(t, f.pool.AvailableCount())
	assert.NotSame(t, c, f.pool.Acquire())
}

func TestNoPrematureRelease(t *testing.T) {
	f := newFixture(t)

	c := f.pool.Acquire()
	require.True(t, c.LeftActive().Fired(), "fresh instance reports an already fired left signal")

	require.NoError(t, f.tree.Attach(c))
	require.NoError(t, f.tree.Detach(c))
	waitAvailable(t, f.pool, 1)

	again := f.pool.Acquire()
	require.Same(t, c, again)
	assert.Zero(t, f.pool.AvailableCount())

	require.NoError(t, f.tree.Attach(again))
	assert.Never(t, func() bool { return f.pool.AvailableCount() != 0 }, quiet, tick)

	require.NoError(t, f.tree.Detach(again))
	waitAvailable(t, f.pool, 1)
}

func TestNeverAttachedIsNotRecycled(t *testing.T) {
	f := newFixture(t)

	f.pool.Acquire()

	assert.Never(t, func() bool { return f.pool.AvailableCount() != 0 }, quiet, tick)
	assert.Equal(t, 1, f.pool.Stats().Watched)
}

func TestClearKeepsLoans(t *testing.T) {
	f := newFixture(t)

	active := f.pool.Acquire()
	require.NoError(t, f.tree.Attach(active))

	idle := f.pool.Acquire()
	f.cycle(t, idle)
	waitAvailable(t, f.pool, 1)

	f.pool.Clear()
	assert.Zero(t, f.pool.AvailableCount())
	assert.True(t, active.Active())
	assert.True(t, f.tree.Contains(active))

	active.Advance()
	assert.Equal(t, 1, active.Age)

	require.NoError(t, f.tree.Detach(active))
	waitAvailable(t, f.pool, 1)
	assert.Same(t, active, f.pool.Acquire())
}

func TestReuseCount(t *testing.T) {
	const n = 25
	f := newFixture(t, WithCapacity(1))

	var first *scene.Component
	for i := 0; i < n; i++ {
		c := f.pool.Acquire()
		if first == nil {
			first = c
		}
		require.Same(t, first, c, "iteration %d", i)
		f.cycle(t, c)
		waitAvailable(t, f.pool, 1)
	}

	assert.Equal(t, int64(1), f.built.Load())
	assert.Equal(t, uint64(n), first.Activations())

	stats := f.pool.Stats()
	assert.Equal(t, uint64(n-1), stats.Reused)
	assert.InDelta(t, float64(n-1)/float64(n), stats.HitRate(), 1e-9)
}

func TestNoDoubleLoan(t *testing.T) {
	const (
		workers    = 8
		iterations = 200
	)
	f := newFixture(t, WithCapacity(4))

	var (
		mu     sync.Mutex
		onLoan = make(map[*scene.Component]bool)
		wg     sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c := f.pool.Acquire()

				mu.Lock()
				if onLoan[c] {
					mu.Unlock()
					t.Errorf("instance %d handed out twice", c.ID)
					return
				}
				onLoan[c] = true
				mu.Unlock()

				if err := f.tree.Attach(c); err != nil {
					t.Error(err)
					return
				}

				mu.Lock()
				delete(onLoan, c)
				mu.Unlock()

				if err := f.tree.Detach(c); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return f.pool.Stats().Watched == 0 }, waitFor, tick)
	stats := f.pool.Stats()
	assert.LessOrEqual(t, stats.Idle, 4)
	assert.Equal(t, uint64(workers*iterations), stats.Recycled+stats.Discarded)
	assert.Zero(t, stats.Duplicates)
	assert.Zero(t, stats.Stale)
}

func TestDuplicateReleaseIgnored(t *testing.T) {
	f := newFixture(t)

	c := f.pool.Acquire()
	f.cycle(t, c)
	waitAvailable(t, f.pool, 1)

	f.pool.release(c, f.pool.cycle)

	assert.Equal(t, 1, f.pool.AvailableCount())
	assert.Equal(t, uint64(1), f.pool.Stats().Duplicates)
}

func TestStaleReleaseIgnored(t *testing.T) {
	f := newFixture(t)

	c := f.pool.Acquire()
	f.pool.release(c, 999)

	assert.Zero(t, f.pool.AvailableCount())
	stats := f.pool.Stats()
	assert.Equal(t, uint64(1), stats.Stale)
	assert.Equal(t, 1, stats.Watched, "the current loan is still watched")

	f.cycle(t, c)
	waitAvailable(t, f.pool, 1)
}

// brokenNode never regenerates its signals; both are fired from the start.
type brokenNode struct {
	entered *lifecycle.Signal
	left    *lifecycle.Signal
}

func (b *brokenNode) EnteredActive() *lifecycle.Signal { return b.entered }
func (b *brokenNode) LeftActive() *lifecycle.Signal    { return b.left }

func TestContractViolationIsNotWatched(t *testing.T) {
	p := New(func() *brokenNode {
		return &brokenNode{entered: lifecycle.Resolved(), left: lifecycle.Resolved()}
	}, WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = p.Close() })

	p.Acquire()

	assert.Never(t, func() bool { return p.AvailableCount() != 0 }, quiet, tick)
	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.ContractViolations)
	assert.Zero(t, stats.Watched)
}

func TestFactoryPanicPropagates(t *testing.T) {
	var fail atomic.Bool
	p := New(func() *scene.Component {
		if fail.Load() {
			panic("out of video memory")
		}
		return scene.NewComponent()
	}, WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = p.Close() })

	p.Acquire()
	fail.Store(true)

	assert.PanicsWithValue(t, "out of video memory", func() { p.Acquire() })

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Acquired)
	assert.Equal(t, 1, stats.Watched)
	assert.Zero(t, stats.Idle)
}

func TestCloseStopsWatchers(t *testing.T) {
	f := newFixture(t, WithInitialCount(3))

	pending := f.pool.Acquire()
	attached := f.pool.Acquire()
	require.NoError(t, f.tree.Attach(attached))

	done := make(chan struct{})
	go func() {
		_ = f.pool.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}

	assert.Zero(t, f.pool.AvailableCount())
	assert.Zero(t, f.pool.Stats().Watched)
	assert.NoError(t, f.pool.Close())

	f.cycle(t, pending)
	require.NoError(t, f.tree.Detach(attached))
	assert.Never(t, func() bool { return f.pool.AvailableCount() != 0 }, quiet, tick)

	late := f.pool.Acquire()
	require.NotNil(t, late)
	assert.Zero(t, f.pool.Stats().Watched)
}

func TestMetricsWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithName("bullets"), WithCapacity(1), WithMetrics(metrics.NewPoolMetrics(reg)))

	a, b := f.pool.Acquire(), f.pool.Acquire()
	f.cycle(t, a)
	f.cycle(t, b)

	expected := `
# HELP scenepool_pool_idle_instances Number of idle instances held by the pool
# TYPE scenepool_pool_idle_instances gauge
scenepool_pool_idle_instances{pool="bullets"} 1
`
	require.Eventually(t, func() bool {
		count, err := promtest.GatherAndCount(reg, "scenepool_pool_releases_total")
		return err == nil && count == 2
	}, waitFor, tick, "expected one release series per outcome: recycled and discarded")
	require.Eventually(t, func() bool {
		return promtest.GatherAndCompare(reg, strings.NewReader(expected), "scenepool_pool_idle_instances") == nil
	}, waitFor, tick)
}

func TestSettleMakesDetachedAvailable(t *testing.T) {
	f := newFixture(t, WithCapacity(8))
	ctx := testutil.TestContext(t)

	for round := 0; round < 50; round++ {
		batch := make([]*scene.Component, 5)
		for i := range batch {
			batch[i] = f.pool.Acquire()
			require.NoError(t, f.tree.Attach(batch[i]))
		}
		for _, c := range batch {
			require.NoError(t, f.tree.Detach(c))
		}

		require.NoError(t, f.pool.Settle(ctx))
		require.Equal(t, 5, f.pool.AvailableCount(), "round %d", round)
	}

	stats := f.pool.Stats()
	assert.Equal(t, int64(5), f.built.Load())
	assert.Equal(t, uint64(245), stats.Reused)
	assert.Zero(t, stats.Watched)
}

func TestSettleSkipsLiveLoans(t *testing.T) {
	f := newFixture(t)

	f.pool.Acquire()
	attached := f.pool.Acquire()
	require.NoError(t, f.tree.Attach(attached))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.pool.Settle(ctx))

	stats := f.pool.Stats()
	assert.Equal(t, 2, stats.Watched)
	assert.Zero(t, stats.Idle)
}

func TestSettleAfterClose(t *testing.T) {
	f := newFixture(t)

	c := f.pool.Acquire()
	require.NoError(t, f.pool.Close())
	f.cycle(t, c)

	assert.NoError(t, f.pool.Settle(testutil.TestContext(t)))
}

func TestGaugesMatchFinalState(t *testing.T) {
	reg := testutil.TestRegistry(t)
	f := newFixture(t, WithName("churn"), WithCapacity(3), WithMetrics(metrics.NewPoolMetrics(reg)))

	const workers, iterations = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c := f.pool.Acquire()
				if err := f.tree.Attach(c); err != nil {
					t.Error(err)
					return
				}
				if err := f.tree.Detach(c); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, f.pool.Settle(testutil.TestContext(t)))

	stats := f.pool.Stats()
	require.Zero(t, stats.Watched)

	expected := fmt.Sprintf(`
# HELP scenepool_pool_idle_instances Number of idle instances held by the pool
# TYPE scenepool_pool_idle_instances gauge
scenepool_pool_idle_instances{pool="churn"} %d
# HELP scenepool_pool_loaned_instances Number of instances handed out and not yet released
# TYPE scenepool_pool_loaned_instances gauge
scenepool_pool_loaned_instances{pool="churn"} 0
`, stats.Idle)
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"scenepool_pool_idle_instances", "scenepool_pool_loaned_instances"))
}
