package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/scenepool/pkg/lifecycle"
	"github.com/ajitpratap0/scenepool/pkg/logger"
	"github.com/ajitpratap0/scenepool/pkg/metrics"
)

// Poolable is the constraint on pooled types. Instances are compared by
// identity, so T is normally a pointer type.
type Poolable interface {
	comparable
	lifecycle.Attachable
}

// Pool is a bounded LIFO pool of recyclable instances. Instances are released
// back to the pool automatically when their owner detaches them. A Pool is
// safe for concurrent use.
type Pool[T Poolable] struct {
	name     string
	factory  func() T
	capacity int
	logger   *zap.Logger
	metrics  *metrics.PoolMetrics

	mu       sync.Mutex
	free     []T
	idle     map[T]struct{}
	loans    map[T]loan
	cycle    uint64
	closed   bool
	stats    counters
	released chan struct{} // closed and replaced after every release

	ctx      context.Context
	cancel   context.CancelFunc
	watchers sync.WaitGroup
}

// loan is the record of a watched acquisition.
type loan struct {
	cycle   uint64
	entered *lifecycle.Signal
}

type counters struct {
	acquired    uint64
	constructed uint64
	reused      uint64
	recycled    uint64
	discarded   uint64
	duplicates  uint64
	stale       uint64
	violations  uint64
}

// New creates a pool that builds instances with factory. The pool takes
// exclusive ownership of factory. Warm-up instances requested with
// WithInitialCount are built synchronously before New returns.
func New[T Poolable](factory func() T, opts ...Option) *Pool[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		name:     o.name,
		factory:  factory,
		capacity: o.capacity,
		logger:   o.logger.With(zap.String("pool", o.name)),
		metrics:  o.metrics,
		free:     make([]T, 0, min(o.capacity, 1024)),
		idle:     make(map[T]struct{}),
		loans:    make(map[T]loan),
		released: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	warm := min(o.initialCount, o.capacity)
	for i := 0; i < warm; i++ {
		p.push(factory())
		p.stats.constructed++
	}
	p.metrics.SetLevels(p.name, len(p.free), 0)

	return p
}

// Acquire returns an idle instance, most recently released first, or builds
// a new one when the pool is empty. Panics raised by the factory propagate
// to the caller and leave the pool unchanged.
//
// The caller owns the returned instance. Once it has been attached and then
// detached by its owner, it returns to the pool on its own.
func (p *Pool[T]) Acquire() T {
	p.mu.Lock()
	obj, reused := p.pop()
	p.mu.Unlock()

	if !reused {
		obj = p.factory()
	}
	entered := obj.EnteredActive()

	p.mu.Lock()
	p.stats.acquired++
	if reused {
		p.stats.reused++
	} else {
		p.stats.constructed++
	}
	p.cycle++
	cycle := p.cycle

	watch := !p.closed
	violation := watch && entered.Fired()
	if violation {
		p.stats.violations++
		watch = false
	}
	if watch {
		p.loans[obj] = loan{cycle: cycle, entered: entered}
		p.watchers.Add(1)
	}
	p.metrics.SetLevels(p.name, len(p.free), len(p.loans))
	p.mu.Unlock()

	p.metrics.ObserveAcquire(p.name, reused)

	if violation {
		p.metrics.ObserveContractViolation(p.name)
		p.logger.Warn("entered-active signal already fired at acquire, instance will not be recycled",
			zap.Uint64("cycle", cycle))
	}
	if watch {
		go p.watch(obj, cycle, entered)
	}

	return obj
}

// AvailableCount returns the number of idle instances.
func (p *Pool[T]) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Capacity returns the maximum number of idle instances the pool retains.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Name returns the pool name.
func (p *Pool[T]) Name() string {
	return p.name
}

// Clear drops every idle instance. Instances currently on loan are not
// affected and still return to the pool when detached.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	dropped := len(p.free)
	p.dropIdle()
	p.metrics.SetLevels(p.name, 0, len(p.loans))
	p.mu.Unlock()

	p.logger.Debug("pool cleared", zap.Int("dropped", dropped))
}

// Close stops every pending watcher, waits for them to exit and drops the
// idle stock. Instances acquired after Close are never recycled. Close is
// idempotent and always returns nil.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.dropIdle()
	pending := len(p.loans)
	p.loans = make(map[T]loan)
	p.metrics.SetLevels(p.name, 0, 0)
	p.notifyReleased()
	p.mu.Unlock()

	p.cancel()
	p.watchers.Wait()

	p.logger.Debug("pool closed", zap.Int("abandoned_watchers", pending))
	return nil
}

// Settle blocks until every loan whose activation has ended has been
// released, then returns. Hosts call it after applying detaches so that
// instances detached in a frame are available before the next Acquire.
// Loans still attached, or never attached, are not waited for. Settle
// returns ctx's error if ctx ends first, and nil once the pool is closed.
func (p *Pool[T]) Settle(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil
		}
		wake := p.released
		var entered []T
		for obj, l := range p.loans {
			if l.entered.Fired() {
				entered = append(entered, obj)
			}
		}
		p.mu.Unlock()

		// The left signal is read outside p.mu: it belongs to the instance.
		pending := false
		for _, obj := range entered {
			if obj.LeftActive().Fired() {
				pending = true
				break
			}
		}
		if !pending {
			return nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Name:               p.name,
		Capacity:           p.capacity,
		Idle:               len(p.free),
		Watched:            len(p.loans),
		Acquired:           p.stats.acquired,
		Constructed:        p.stats.constructed,
		Reused:             p.stats.reused,
		Recycled:           p.stats.recycled,
		Discarded:          p.stats.discarded,
		Duplicates:         p.stats.duplicates,
		Stale:              p.stats.stale,
		ContractViolations: p.stats.violations,
	}
}

// release is the automatic release path. It is only ever invoked by the
// watcher of the given cycle.
func (p *Pool[T]) release(obj T, cycle uint64) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var outcome string
	switch current, loaned := p.loans[obj]; {
	case p.contains(obj):
		p.stats.duplicates++
		outcome = metrics.OutcomeDuplicate
	case !loaned || current.cycle != cycle:
		p.stats.stale++
		outcome = metrics.OutcomeStale
	case len(p.free) >= p.capacity:
		delete(p.loans, obj)
		p.stats.discarded++
		outcome = metrics.OutcomeDiscarded
	default:
		delete(p.loans, obj)
		p.push(obj)
		p.stats.recycled++
		outcome = metrics.OutcomeRecycled
	}
	p.metrics.SetLevels(p.name, len(p.free), len(p.loans))
	p.notifyReleased()
	p.mu.Unlock()

	p.metrics.ObserveRelease(p.name, outcome)

	switch outcome {
	case metrics.OutcomeDiscarded:
		p.logger.Debug("pool full, instance discarded", zap.Uint64("cycle", cycle))
	case metrics.OutcomeStale:
		p.logger.Debug("ignoring release from a stale watcher", zap.Uint64("cycle", cycle))
	}
}

// notifyReleased wakes Settle callers. Requires p.mu.
func (p *Pool[T]) notifyReleased() {
	close(p.released)
	p.released = make(chan struct{})
}

// push and pop require p.mu.
func (p *Pool[T]) push(obj T) {
	p.free = append(p.free, obj)
	p.idle[obj] = struct{}{}
}

func (p *Pool[T]) pop() (T, bool) {
	n := len(p.free)
	if n == 0 {
		var zero T
		return zero, false
	}
	obj := p.free[n-1]
	var zero T
	p.free[n-1] = zero
	p.free = p.free[:n-1]
	delete(p.idle, obj)
	return obj, true
}

func (p *Pool[T]) contains(obj T) bool {
	_, ok := p.idle[obj]
	return ok
}

func (p *Pool[T]) dropIdle() {
	clear(p.free)
	p.free = p.free[:0]
	clear(p.idle)
}
