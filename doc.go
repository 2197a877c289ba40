// Package spawnpool provides generic object pools and a keyed spawner that
// recycles host instances (scene nodes, entities, handles) instead of
// creating and destroying them on every use.
//
// # Architecture
//
// The library is built in two layers:
//
// 1. Pool (pkg/pool): a homogeneous, insertion-ordered collection of items
// created by a caller-supplied factory. Acquire reuses the earliest-created
// free item and grows by exactly one item when none is free. Lifecycle hooks
// run on acquire, release and disposal.
//
// 2. Spawner (pkg/spawner): one Pool per prototype key, with hooks bound to
// a Host that can instantiate, activate, reparent and destroy instances.
// Returned instances are deactivated and parked under a root parent until
// they are handed out again.
//
// # Quick Start
//
//	world := scene.New()
//	root := world.NewNode("pool", nil)
//	bullet := world.NewPrototype("Bullet")
//
//	s := spawner.New[*scene.Node, *scene.Node](world, root,
//	    spawner.Callbacks[*scene.Node, *scene.Node]{},
//	    spawner.WithLogger(logger.Get()))
//	defer s.Dispose()
//
//	s.Allocate(bullet, 32)      // pre-warm 32 inactive instances
//	b, err := s.Get(bullet)     // active, tracked as spawned from bullet
//	...
//	s.Return(b)                 // inactive, back under root
//
// # Key Packages
//
//   - pkg/pool: Pool[T], hooks, Stats and the Observer interface
//   - pkg/spawner: Spawner[K, I], the Host interface and user Callbacks
//   - pkg/poolerrors: typed errors (hook, host, disposed, double_release)
//   - pkg/metrics: Prometheus PoolCollector and a latency tracker
//   - pkg/observability: OpenTelemetry tracing setup
//   - pkg/config: YAML configuration with ${VAR} substitution
//   - pkg/logger: global zap logger
//   - internal/scene: in-memory scene graph Host
//   - internal/simulation: deterministic spawn/return frame loop
//
// # Command Line
//
//	spawnpool version
//	spawnpool config init spawnpool.yaml
//	spawnpool simulate --config spawnpool.yaml --frames 600 --trace
//
// simulate prints a JSON report with per-prototype pool statistics, peak
// active instances and frame latency percentiles. With --metrics-addr it
// also serves Prometheus metrics while running.
//
// # Concurrency
//
// Pool is not safe for concurrent use. Spawner guards all of its state with
// a single mutex and may be shared between goroutines; its host primitives
// and callbacks run while that mutex is held.
package spawnpool
