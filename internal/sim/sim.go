// Package sim drives a spawn/despawn loop over a scene tree, recycling
// components through a pool.
package sim

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/scenepool/pkg/config"
	"github.com/ajitpratap0/scenepool/pkg/errors"
	"github.com/ajitpratap0/scenepool/pkg/logger"
	"github.com/ajitpratap0/scenepool/pkg/metrics"
	"github.com/ajitpratap0/scenepool/pkg/observability"
	"github.com/ajitpratap0/scenepool/pkg/pool"
	"github.com/ajitpratap0/scenepool/pkg/scene"
)

// Config holds the loop settings.
type Config = config.SimulationConfig

// Report summarizes a run.
type Report struct {
	Ticks     uint64        `json:"ticks"`
	Spawned   uint64        `json:"spawned"`
	Despawned uint64        `json:"despawned"`
	Live      int           `json:"live"`
	PeakLive  int           `json:"peak_live"`
	Elapsed   time.Duration `json:"elapsed"`
	Pool      pool.Stats    `json:"pool"`
	RSSBytes  uint64        `json:"rss_bytes"`
}

// Simulation spawns SpawnPerTick components every tick and despawns each one
// after Lifetime ticks. It is driven from a single goroutine.
type Simulation struct {
	pool    *pool.Pool[*scene.Component]
	tree    *scene.Tree
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.PoolMetrics
	tracer  trace.Tracer
	meter   metric.Meter

	tickDuration metric.Float64Histogram

	live      []*scene.Component
	tick      uint64
	spawned   uint64
	despawned uint64
	peakLive  int
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithMetrics records tick durations on Prometheus collectors.
func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(s *Simulation) { s.metrics = m }
}

// WithTracer overrides the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) { s.tracer = t }
}

// WithMeter overrides the OpenTelemetry meter. Defaults to the global provider.
func WithMeter(m metric.Meter) Option {
	return func(s *Simulation) { s.meter = m }
}

// New creates a simulation over p and tree.
func New(p *pool.Pool[*scene.Component], tree *scene.Tree, cfg Config, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		pool: p,
		tree: tree,
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	if s.meter == nil {
		s.meter = observability.Meter()
	}
	s.logger = s.logger.With(zap.String("component", "sim"), zap.String("pool", p.Name()))

	hist, err := s.meter.Float64Histogram("scenepool.sim.tick.duration",
		metric.WithDescription("Duration of a simulation tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create tick histogram")
	}
	s.tickDuration = hist

	return s, nil
}

// Step runs one tick: ages live components, despawns the expired ones and
// spawns new ones. Components despawned in a tick are back in the pool
// before that tick spawns.
func (s *Simulation) Step(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "sim.tick",
		trace.WithAttributes(attribute.Int64("tick", int64(s.tick))))
	defer span.End()

	timer := metrics.NewTimer()

	kept := s.live[:0]
	for _, c := range s.live {
		c.Advance()
		if c.Age >= s.cfg.Lifetime {
			s.tree.QueueDetach(c)
			continue
		}
		kept = append(kept, c)
	}
	clear(s.live[len(kept):])
	s.live = kept
	s.despawned += uint64(s.tree.Flush())
	if err := s.pool.Settle(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle interrupted")
		return errors.Wrap(err, errors.ErrorTypeTimeout, "interrupted waiting for releases").
			WithDetail("tick", s.tick)
	}

	for i := 0; i < s.cfg.SpawnPerTick; i++ {
		c := s.pool.Acquire()
		c.Reset()
		c.Name = fmt.Sprintf("spawn-%d-%d", s.tick, i)
		c.Velocity = scene.Vec2{X: float64(i%3 - 1), Y: 1}
		c.Payload = append(c.Payload, c.Name...)

		if err := s.tree.Attach(c); err != nil {
			logger.WithContext(logger.WithTick(ctx, s.tick)).Error("failed to attach spawned component",
				zap.Uint64("id", c.ID), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "attach failed")
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to attach spawned component").
				WithDetail("tick", s.tick)
		}
		s.live = append(s.live, c)
		s.spawned++
	}
	s.peakLive = max(s.peakLive, len(s.live))

	elapsed := timer.Stop()
	s.metrics.ObserveTick(elapsed)
	s.tickDuration.Record(ctx, elapsed.Seconds())
	span.SetAttributes(attribute.Int("live", len(s.live)))

	s.tick++
	return nil
}

// Run executes the configured number of ticks, paced by TickInterval, then
// despawns everything still alive.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := s.logger
	log.Info("simulation started",
		zap.Int("ticks", s.cfg.Ticks),
		zap.Int("spawn_per_tick", s.cfg.SpawnPerTick),
		zap.Int("lifetime", s.cfg.Lifetime),
		zap.Duration("tick_interval", s.cfg.TickInterval))

	var pace <-chan time.Time
	if s.cfg.TickInterval > 0 {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		pace = ticker.C
	}

	for i := 0; i < s.cfg.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			logger.WithContext(logger.WithTick(ctx, s.tick)).Warn("simulation interrupted", zap.Int("live", len(s.live)))
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "simulation interrupted").
				WithDetail("tick", s.tick)
		}
		if err := s.Step(ctx); err != nil {
			return nil, err
		}
		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
	}

	if err := s.Drain(ctx); err != nil {
		return nil, err
	}
	report := s.Report(time.Since(start))
	log.Info("simulation finished",
		zap.Uint64("spawned", report.Spawned),
		zap.Uint64("constructed", report.Pool.Constructed),
		zap.Uint64("reused", report.Pool.Reused),
		zap.Float64("hit_rate", report.Pool.HitRate()))
	return report, nil
}

// Drain despawns every live component and waits until the pool has taken
// them back.
func (s *Simulation) Drain(ctx context.Context) error {
	for _, c := range s.live {
		s.tree.QueueDetach(c)
	}
	clear(s.live)
	s.live = s.live[:0]
	s.despawned += uint64(s.tree.Flush())

	if err := s.pool.Settle(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "interrupted waiting for releases")
	}
	return nil
}

// Live returns the number of live components.
func (s *Simulation) Live() int {
	return len(s.live)
}

// Report returns a summary of the run so far.
func (s *Simulation) Report(elapsed time.Duration) *Report {
	return &Report{
		Ticks:     s.tick,
		Spawned:   s.spawned,
		Despawned: s.despawned,
		Live:      len(s.live),
		PeakLive:  s.peakLive,
		Elapsed:   elapsed,
		Pool:      s.pool.Stats(),
		RSSBytes:  s.rss(),
	}
}

func (s *Simulation) rss() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec
	if err != nil {
		s.logger.Debug("process stats unavailable", zap.Error(err))
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		s.logger.Debug("memory stats unavailable", zap.Error(err))
		return 0
	}
	return mem.RSS
}
