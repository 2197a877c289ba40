// Package spawner pools host instances per prototype key.
//
// A Spawner lazily creates one pool.Pool per prototype, wires the pool's
// lifecycle hooks to host side effects, and remembers which prototype every
// handed out instance came from so callers can return an instance without
// naming its key again.
//
// Hook composition is fixed:
//
//	create:  Instantiate(prototype, root), then Callbacks.OnCreate
//	acquire: SetActive(true), then Callbacks.OnGet
//	release: SetActive(false), SetParent(root), then Callbacks.OnRelease
//	destroy: Destroy, then Callbacks.OnDestroy
//
// Basic usage:
//
//	world := scene.New()
//	root := world.NewNode("pool", nil)
//	bullet := world.NewPrototype("Bullet")
//
//	s := spawner.New[*scene.Node, *scene.Node](world, root, spawner.Callbacks[*scene.Node, *scene.Node]{})
//	defer s.Dispose()
//
//	s.Allocate(bullet, 32)
//	b, err := s.Get(bullet)
//	...
//	s.Return(b)
package spawner

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Spawner maps prototype keys to pools of host instances.
//
// All spawner state is guarded by one mutex, so a Spawner may be shared
// between goroutines. Host primitives and callbacks run while that mutex is
// held and must not call back into the spawner. Pools returned by Allocate
// and Pool bypass the mutex; use them from one goroutine only.
type Spawner[K comparable, I comparable] struct {
	mu       sync.Mutex
	host     Host[K, I]
	root     I
	cb       Callbacks[K, I]
	pools    map[K]*pool.Pool[I]
	keys     []K
	active   map[I]K
	disposed bool
	opts     options
}

// New creates a spawner whose instances live under root when idle.
func New[K comparable, I comparable](host Host[K, I], root I, callbacks Callbacks[K, I], opts ...Option) *Spawner[K, I] {
	if host == nil {
		panic("spawner: New called with nil host")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Spawner[K, I]{
		host:   host,
		root:   root,
		cb:     callbacks,
		pools:  make(map[K]*pool.Pool[I]),
		active: make(map[I]K),
		opts:   o,
	}
}

// Allocate returns the pool for key, creating it on first use. When
// initial > 0 it pre-warms that many instances and deactivates each of
// them, whatever state the create callback left them in. Creation and
// deactivation failures are combined; a failed deactivation does not stop
// the remaining items from being deactivated.
func (s *Spawner[K, I]) Allocate(key K, initial int) (*pool.Pool[I], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, s.disposedError("allocate")
	}
	return s.allocate(key, initial)
}

// Get hands out an active instance of key, creating the key's pool with no
// pre-warm if it does not exist yet. The instance stays under root.
//
// If a host primitive or callback fails after the instance was acquired,
// the instance is returned with the error; it is in use but not tracked,
// so hand it back with ReturnKeyed.
func (s *Spawner[K, I]) Get(key K) (I, error) {
	var zero I
	return s.get(key, zero, false)
}

// GetWithParent is Get followed by moving the instance under parent.
func (s *Spawner[K, I]) GetWithParent(key K, parent I) (I, error) {
	return s.get(key, parent, true)
}

// Return hands instance back to the pool it was taken from. Returning an
// instance that is not currently handed out is a no-op.
func (s *Spawner[K, I]) Return(instance I) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.active[instance]
	if !ok {
		s.opts.logger.Debug("return of untracked instance ignored",
			zap.String("instance", fmt.Sprint(instance)))
		return nil
	}
	return s.returnKeyed(key, instance)
}

// ReturnKeyed hands instance back to key's pool. An unknown key is a
// no-op. The instance is forgotten as active even if the release hook
// fails.
//
// key is trusted. Passing an allocated key other than the one instance was
// spawned from releases nothing, since that pool does not own instance, yet
// still forgets instance as active: it stays in use in its real pool and a
// later Return(instance) is a no-op. Only ReturnKeyed with the right key
// recovers it.
func (s *Spawner[K, I]) ReturnKeyed(key K, instance I) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.returnKeyed(key, instance)
}

// Pool returns the pool for key if it has been allocated.
func (s *Spawner[K, I]) Pool(key K) (*pool.Pool[I], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[key]
	return p, ok
}

// Keys returns every allocated key in first-allocation order.
func (s *Spawner[K, I]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]K, len(s.keys))
	copy(out, s.keys)
	return out
}

// KeyOf returns the key an active instance was spawned from.
func (s *Spawner[K, I]) KeyOf(instance I) (K, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.active[instance]
	return key, ok
}

// ActiveCount returns the number of instances currently handed out.
func (s *Spawner[K, I]) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.active)
}

// Stats returns a snapshot of every pool's statistics.
func (s *Spawner[K, I]) Stats() map[K]pool.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[K]pool.Stats, len(s.pools))
	for key, p := range s.pools {
		out[key] = p.Stats()
	}
	return out
}

// Dispose disposes every pool, destroying all instances whether active or
// idle, and forgets every key. Failures are combined; every pool is torn
// down regardless. Later Allocate and Get calls fail.
func (s *Spawner[K, I]) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil
	}

	var errs error
	for _, key := range s.keys {
		errs = multierr.Append(errs, s.pools[key].Dispose())
	}

	s.opts.logger.Debug("spawner disposed",
		zap.Int("pools", len(s.keys)),
		zap.Int("active", len(s.active)))

	s.pools = make(map[K]*pool.Pool[I])
	s.keys = nil
	s.active = make(map[I]K)
	s.disposed = true

	return errs
}

func (s *Spawner[K, I]) get(key K, parent I, reparent bool) (I, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero I
	if s.disposed {
		return zero, s.disposedError("get")
	}

	p, ok := s.pools[key]
	if !ok {
		var err error
		if p, err = s.allocate(key, 0); err != nil {
			return zero, err
		}
	}

	instance, err := p.Acquire()
	if err != nil {
		return instance, err
	}

	if reparent {
		if err := s.host.SetParent(instance, parent); err != nil {
			return instance, s.hostError("set parent", key, err)
		}
	}

	s.active[instance] = key
	return instance, nil
}

func (s *Spawner[K, I]) allocate(key K, initial int) (*pool.Pool[I], error) {
	p, ok := s.pools[key]
	if !ok {
		p = s.newPool(key)
		s.pools[key] = p
		s.keys = append(s.keys, key)

		s.opts.logger.Debug("pool allocated",
			zap.String("key", p.Name()),
			zap.Int("initial", initial))
	}

	// Every created item is deactivated even if creation or an earlier
	// deactivation failed.
	items, err := p.Preallocate(initial)
	for _, item := range items {
		if activeErr := s.host.SetActive(item, false); activeErr != nil {
			err = multierr.Append(err, s.hostError("set active", key, activeErr))
		}
	}

	return p, err
}

func (s *Spawner[K, I]) returnKeyed(key K, instance I) error {
	p, ok := s.pools[key]
	if !ok {
		s.opts.logger.Debug("return to unknown key ignored",
			zap.String("key", fmt.Sprint(key)))
		return nil
	}

	err := p.Release(instance)
	delete(s.active, instance)
	return err
}

func (s *Spawner[K, I]) newPool(key K) *pool.Pool[I] {
	create := func() (I, error) {
		instance, err := s.host.Instantiate(key, s.root)
		if err != nil {
			var zero I
			return zero, s.hostError("instantiate", key, err)
		}
		if s.cb.OnCreate != nil {
			if err := s.cb.OnCreate(key, instance); err != nil {
				return instance, err
			}
		}
		return instance, nil
	}

	hooks := pool.Hooks[I]{
		OnAcquire: func(instance I) error {
			if err := s.host.SetActive(instance, true); err != nil {
				return s.hostError("set active", key, err)
			}
			if s.cb.OnGet != nil {
				return s.cb.OnGet(instance)
			}
			return nil
		},
		OnRelease: func(instance I) error {
			if err := s.host.SetActive(instance, false); err != nil {
				return s.hostError("set active", key, err)
			}
			if err := s.host.SetParent(instance, s.root); err != nil {
				return s.hostError("set parent", key, err)
			}
			if s.cb.OnRelease != nil {
				return s.cb.OnRelease(instance)
			}
			return nil
		},
		OnDestroy: func(instance I) error {
			if err := s.host.Destroy(instance); err != nil {
				return s.hostError("destroy", key, err)
			}
			if s.cb.OnDestroy != nil {
				return s.cb.OnDestroy(instance)
			}
			return nil
		},
	}

	opts := []pool.Option{
		pool.WithName(fmt.Sprint(key)),
		pool.WithLogger(s.opts.logger),
	}
	if s.opts.observer != nil {
		opts = append(opts, pool.WithObserver(s.opts.observer))
	}
	if s.opts.strictRelease {
		opts = append(opts, pool.WithStrictRelease())
	}

	return pool.New(create, hooks, opts...)
}

func (s *Spawner[K, I]) hostError(op string, key K, err error) *poolerrors.Error {
	return poolerrors.Wrap(err, poolerrors.ErrorTypeHost, op+" failed").
		WithDetail("key", fmt.Sprint(key)).
		WithDetail("operation", op)
}

func (s *Spawner[K, I]) disposedError(op string) error {
	return poolerrors.New(poolerrors.ErrorTypeDisposed, "spawner already disposed").
		WithDetail("operation", op)
}
