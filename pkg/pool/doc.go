// Package pool implements a generic reusable-instance pool with lifecycle
// hooks. It is the allocation core of spawnpool: the keyed spawner builds one
// Pool per prototype on top of it.
//
// Architecture
//
// A Pool owns an insertion-ordered list of entries. Each entry wraps one item
// created by the pool's Factory, a used/free flag, and the destroy hook that
// tears the item down. The list only grows until Dispose.
//
// Core Types:
//
//   - Pool[T]: the pool itself, generic over any comparable item type
//   - Hooks[T]: optional acquire, release and destroy callbacks
//   - Stats: allocation and reuse counters
//   - Observer: receives an Event and a Stats snapshot after each mutation
//
// Allocation Order
//
// Acquire is first fit by insertion order: the earliest created free entry
// is always reused first, no matter which entry was released most recently.
// A lowest-free-index hint keeps repeated acquires from rescanning the used
// prefix, and an identity index makes Release O(1).
//
//	p.Preallocate(3)     // w1 w2 w3, all free
//	a, _ := p.Acquire()  // w1
//	b, _ := p.Acquire()  // w2
//	p.Release(a)         // w1 free again
//	c, _ := p.Acquire()  // w1, not w3
//
// Identity
//
// Items are looked up by Go equality, so pointer and handle types give
// identity semantics. A Factory must return a distinct item on every call.
//
// Failure Model
//
// Hook failures are returned wrapped as poolerrors.ErrorTypeHook with no
// rollback: the pool keeps whatever bookkeeping the call had reached. An
// entry created before a failing acquire hook stays in the pool, marked in
// use. Dispose runs every destroy hook and combines all failures.
//
// Double Release
//
// Releasing an already free item fires the release hook again by default.
// WithStrictRelease turns that into an ErrorTypeDoubleRelease error.
//
// Concurrency
//
// A Pool is confined to one goroutine. The spawner package serializes
// access to all of its pools behind a single mutex.
package pool
