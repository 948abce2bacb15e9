// Package config provides configuration management for scenepool.
//
// # Key Features
//
// - Config: a single structure covering the pool, the simulation loop, logging,
// metrics and tracing
// - Loading from YAML, JSON or TOML files through viper
// - Environment overrides with the SCENEPOOL_ prefix, nested keys joined by
// underscores (SCENEPOOL_POOL_CAPACITY=256)
// - Automatic defaults and validation
//
// # Usage
//
//	cfg, err := config.Load("scenepool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Passing an empty path loads defaults plus environment overrides.
//
// # Configuration Sections
//
//	pool:
//	  name: components
//	  capacity: 100
//	  initial_count: 0
//	simulation:
//	  ticks: 600
//	  tick_interval: 16ms
//	  spawn_per_tick: 8
//	  lifetime: 45
//	logging:
//	  level: info
//	  encoding: json
//	metrics:
//	  enabled: false
//	  address: ":9090"
//	  path: /metrics
//	tracing:
//	  enabled: false
//	  service_name: scenepool
//	  sampling_rate: 1.0
package config
