package config

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/scenepool/pkg/errors"
	"github.com/ajitpratap0/scenepool/pkg/logger"
	"github.com/ajitpratap0/scenepool/pkg/pool"
)

// Config is the top-level configuration.
type Config struct {
	// Pool configures the component pool
	Pool PoolConfig `mapstructure:"pool" yaml:"pool" json:"pool"`

	// Simulation configures the spawn/despawn loop
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation" json:"simulation"`

	// Logging configures the global logger
	Logging logger.Config `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry tracing
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

// PoolConfig contains pool sizing.
type PoolConfig struct {
	// Name labels the pool in logs and metrics
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	// Capacity bounds the number of idle instances
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	// InitialCount pre-builds instances at startup (clamped to Capacity)
	InitialCount int `mapstructure:"initial_count" yaml:"initial_count" json:"initial_count"`
}

// SimulationConfig contains the host loop settings.
type SimulationConfig struct {
	// Ticks is the number of loop iterations to run
	Ticks int `mapstructure:"ticks" yaml:"ticks" json:"ticks"`
	// TickInterval is the wall-clock time between ticks
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" json:"tick_interval"`
	// SpawnPerTick is the number of components spawned each tick
	SpawnPerTick int `mapstructure:"spawn_per_tick" yaml:"spawn_per_tick" json:"spawn_per_tick"`
	// Lifetime is how many ticks a component stays attached
	Lifetime int `mapstructure:"lifetime" yaml:"lifetime" json:"lifetime"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate" json:"sampling_rate"`
}

// NewDefault returns a Config populated with defaults.
func NewDefault() *Config {
	return &Config{
		Pool: PoolConfig{
			Name:         "components",
			Capacity:     pool.DefaultCapacity,
			InitialCount: 0,
		},
		Simulation: SimulationConfig{
			Ticks:        600,
			TickInterval: 16 * time.Millisecond,
			SpawnPerTick: 8,
			Lifetime:     45,
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "scenepool",
			SamplingRate: 1.0,
		},
	}
}

// Validate checks that values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Pool.Capacity < 0 {
		return invalid("pool.capacity", c.Pool.Capacity, "cannot be negative")
	}
	if c.Pool.InitialCount < 0 {
		return invalid("pool.initial_count", c.Pool.InitialCount, "cannot be negative")
	}
	if c.Simulation.Ticks <= 0 {
		return invalid("simulation.ticks", c.Simulation.Ticks, "must be positive")
	}
	if c.Simulation.TickInterval < 0 {
		return invalid("simulation.tick_interval", c.Simulation.TickInterval, "cannot be negative")
	}
	if c.Simulation.SpawnPerTick < 0 {
		return invalid("simulation.spawn_per_tick", c.Simulation.SpawnPerTick, "cannot be negative")
	}
	if c.Simulation.Lifetime <= 0 {
		return invalid("simulation.lifetime", c.Simulation.Lifetime, "must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "logging.level is invalid").
			WithDetail("field", "logging.level")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return invalid("metrics.address", c.Metrics.Address, "is required when metrics are enabled")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return invalid("tracing.sampling_rate", c.Tracing.SamplingRate, "must be between 0 and 1")
	}
	return nil
}

func invalid(field string, value interface{}, reason string) error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value)
}
