// Package scenepool provides a bounded, generic object pool whose instances
// return to it automatically when they leave an active tree.
//
// Building heavyweight scene objects (buffers, meshes, scripts) is expensive,
// and games and UIs create and destroy them constantly. scenepool keeps a LIFO
// stock of idle instances and installs a watcher on every instance it hands
// out. The watcher waits for the instance to enter the tree and then to leave
// it, and only then puts it back on the free list.
//
// # Architecture
//
//  1. Lifecycle signals: each instance exposes a one-shot "entered" and "left"
//     signal (pkg/lifecycle). Hosts regenerate both on every transition.
//
//  2. Pool: pool.Pool[T] stores idle instances up to a capacity and discards
//     extras. Releases are tagged with a loan cycle so a late watcher cannot
//     return an instance that has already been reissued.
//
//  3. Host: pkg/scene provides a minimal tree that fires the signals, and
//     internal/sim drives a spawn/despawn loop on top of it.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/scenepool/pkg/pool"
//	    "github.com/ajitpratap0/scenepool/pkg/scene"
//	)
//
//	tree := scene.NewTree()
//	bullets := pool.New(scene.NewComponent, pool.WithCapacity(64))
//	defer bullets.Close()
//
//	b := bullets.Acquire()
//	b.Reset()
//	_ = tree.Attach(b)
//	// ...
//	_ = tree.Detach(b) // b is back in the pool shortly after
//
// # Key Packages
//
//	pkg/lifecycle     - One-shot signals and embeddable activation hooks
//	pkg/pool          - Generic lifecycle-driven object pool
//	pkg/scene         - Scene tree and reusable components
//	pkg/config        - Configuration loading (viper) and validation
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging (zap)
//	pkg/metrics       - Prometheus collectors
//	pkg/observability - OpenTelemetry tracing setup
//	internal/sim      - Spawn/despawn simulation
//
// # Command Line
//
//	scenepool run --config scenepool.yaml --json
//	scenepool config
//	scenepool version
//
// Configuration values can be overridden with SCENEPOOL_* environment
// variables, optionally loaded from a .env file.
package scenepool
