// Package pool recycles heavyweight scene objects instead of allocating and
// discarding them on every spawn/despawn cycle.
//
// # Architecture
//
// A Pool[T] owns a bounded LIFO free list of idle instances and a factory used
// to build new ones. Callers never hand instances back explicitly. Each call to
// Acquire installs a watcher bound to that single acquisition cycle; the watcher
// returns the instance to the free list once the owning scene tree has attached
// and then detached it.
//
// Core Types:
//
//   - Pool[T]: the pool itself, parameterized by any comparable
//     lifecycle.Attachable (normally a pointer to a component)
//   - Option: functional options for capacity, warm-up, naming, logging and metrics
//   - Stats: a point-in-time snapshot of pool counters
//
// # Release Ordering
//
// An instance that has never been attached reports its left-active signal as
// already fired. A watcher that waited on that signal directly would recycle
// the instance before the caller ever attached it, and the same instance could
// then be handed to two owners. Watchers therefore wait for the entered-active
// signal first and only then for the left-active signal of that activation.
//
// As a second line of defense every acquisition is tagged with a cycle id. The
// release path ignores watchers whose id no longer matches the current loan.
// If the entered-active signal has already fired when an instance is loaned
// out, the collaborator broke its contract; the pool logs it and installs no
// watcher, so the instance is simply never recycled.
//
// # Usage Patterns
//
//	bullets := pool.New(scene.NewComponent,
//		pool.WithName("bullets"),
//		pool.WithCapacity(256),
//		pool.WithInitialCount(64),
//	)
//	defer bullets.Close()
//
//	b := bullets.Acquire()
//	_ = tree.Attach(b)
//	// ... later, when the tree detaches b, it returns to the pool by itself.
//	_ = tree.Detach(b)
//
// An instance that is acquired but never attached is never recycled. Its
// watcher stays pending until Close.
//
// # Concurrency
//
// Watchers run on their own goroutines, so all free-list mutations are
// serialized with a mutex. Releases happen asynchronously after the detach
// that triggered them; there is no ordering guarantee between different
// instances. A host loop that needs detached instances back before its next
// Acquire calls Settle after applying its detaches:
//
//	tree.Flush()
//	if err := bullets.Settle(ctx); err != nil {
//		return err
//	}
package pool
