package pool

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/scenepool/pkg/metrics"
)

// DefaultCapacity is the number of idle instances a pool retains when no
// capacity is configured.
const DefaultCapacity = 100

type options struct {
	name         string
	capacity     int
	initialCount int
	logger       *zap.Logger
	metrics      *metrics.PoolMetrics
}

func defaultOptions() options {
	return options{
		name:     "default",
		capacity: DefaultCapacity,
	}
}

// Option configures a Pool.
type Option func(*options)

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithCapacity bounds the number of idle instances. Negative values are
// treated as zero, which disables recycling entirely.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.capacity = n
	}
}

// WithInitialCount pre-builds n instances at construction time. The count is
// clamped to the capacity.
func WithInitialCount(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.initialCount = n
	}
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
