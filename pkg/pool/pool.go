package pool

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Factory creates a new item for the pool.
type Factory[T any] func() (T, error)

// Hook is a lifecycle callback invoked with a pooled item.
type Hook[T any] func(item T) error

// Hooks groups the optional lifecycle callbacks of a pool. A nil hook is
// simply not invoked.
type Hooks[T any] struct {
	// OnAcquire runs every time an item is handed out
	OnAcquire Hook[T]
	// OnRelease runs every time an item is handed back
	OnRelease Hook[T]
	// OnDestroy runs exactly once per item, when the pool is disposed
	OnDestroy Hook[T]
}

// Pool represents a homogeneous collection of reusable items of type T.
//
// Items are looked up by identity, so T should be a pointer or an opaque
// handle type. Acquire reuses the earliest-created free item (first fit by
// insertion order) and grows the pool by exactly one item when none is free.
// The pool never shrinks until it is disposed.
//
// Pool is not safe for concurrent use. Hooks must not call back into the
// pool that invoked them.
type Pool[T comparable] struct {
	entries []*entry[T]
	index   map[T]int

	// no free entry exists below this index
	firstFree int
	inUse     int
	hits      int64
	misses    int64
	disposed  bool

	create Factory[T]
	hooks  Hooks[T]
	opts   options
}

// New creates an empty pool. create is required; every hook is optional.
//
// Example:
//
//	p := pool.New(func() (*Widget, error) { return &Widget{}, nil }, pool.Hooks[*Widget]{})
//	widgets, _ := p.Preallocate(3)
func New[T comparable](create Factory[T], hooks Hooks[T], opts ...Option) *Pool[T] {
	if create == nil {
		panic("pool: New called with nil create function")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Pool[T]{
		index:  make(map[T]int),
		create: create,
		hooks:  hooks,
		opts:   o,
	}
}

// Name returns the pool name.
func (p *Pool[T]) Name() string {
	return p.opts.name
}

// Preallocate creates count free items and returns them in creation order.
// The acquire hook is not invoked. It returns nil when count <= 0.
//
// If create fails part way, the items created so far stay in the pool and
// are returned together with the error.
func (p *Pool[T]) Preallocate(count int) ([]T, error) {
	if p.disposed {
		return nil, p.disposedError("preallocate")
	}
	if count <= 0 {
		return nil, nil
	}

	items := make([]T, 0, count)
	for i := 0; i < count; i++ {
		e, err := p.newEntry()
		if err != nil {
			return items, err
		}
		items = append(items, e.item)
	}

	p.opts.logger.Debug("pool preallocated",
		zap.String("pool", p.opts.name),
		zap.Int("count", count),
		zap.Int("size", len(p.entries)))

	return items, nil
}

// Acquire hands out the first free item in insertion order, creating one
// when every item is in use, and runs the acquire hook on it.
//
// If the acquire hook fails the item stays marked in use and is returned
// together with the error, so the caller can still Release it.
func (p *Pool[T]) Acquire() (T, error) {
	var zero T
	if p.disposed {
		return zero, p.disposedError("acquire")
	}

	e, idx := p.firstFreeEntry()
	if e == nil {
		var err error
		if e, err = p.newEntry(); err != nil {
			return zero, err
		}
		idx = len(p.entries) - 1
		p.misses++
	} else {
		p.hits++
	}

	e.inUse = true
	p.inUse++
	p.firstFree = idx + 1
	p.notify(EventAcquire)

	if p.hooks.OnAcquire != nil {
		if err := p.hooks.OnAcquire(e.item); err != nil {
			return e.item, p.hookError("acquire", err)
		}
	}

	return e.item, nil
}

// Release hands item back to the pool and runs the release hook. Releasing
// an item the pool does not own is a no-op.
//
// Releasing an item that is already free runs the release hook again,
// unless the pool was built WithStrictRelease, in which case an
// ErrorTypeDoubleRelease error is returned and nothing else happens.
func (p *Pool[T]) Release(item T) error {
	if p.disposed {
		return p.disposedError("release")
	}

	idx, ok := p.index[item]
	if !ok {
		p.opts.logger.Debug("release of item not owned by pool ignored",
			zap.String("pool", p.opts.name))
		return nil
	}

	e := p.entries[idx]
	if e.inUse {
		e.inUse = false
		p.inUse--
		if idx < p.firstFree {
			p.firstFree = idx
		}
	} else if p.opts.strictRelease {
		return poolerrors.New(poolerrors.ErrorTypeDoubleRelease, "item is already free").
			WithDetail("pool", p.opts.name).
			WithDetail("index", idx)
	}
	p.notify(EventRelease)

	if p.hooks.OnRelease != nil {
		if err := p.hooks.OnRelease(e.item); err != nil {
			return p.hookError("release", err)
		}
	}

	return nil
}

// Dispose runs the destroy hook for every item, used or free, then empties
// the pool. Every hook runs even if some fail; their errors are combined.
// The pool cannot be used afterward; further calls return an
// ErrorTypeDisposed error, except Dispose which is a no-op.
func (p *Pool[T]) Dispose() error {
	if p.disposed {
		return nil
	}

	var errs error
	for idx, e := range p.entries {
		p.notify(EventDestroy)
		if err := e.dispose(); err != nil {
			errs = multierr.Append(errs, p.hookError("destroy", err).WithDetail("index", idx))
		}
	}

	destroyed := len(p.entries)
	p.entries = nil
	p.index = make(map[T]int)
	p.firstFree = 0
	p.inUse = 0
	p.disposed = true
	p.notify(EventDispose)

	p.opts.logger.Debug("pool disposed",
		zap.String("pool", p.opts.name),
		zap.Int("destroyed", destroyed),
		zap.Bool("errors", errs != nil))

	return errs
}

// Stats returns current pool statistics. Hits and misses survive Dispose.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: len(p.entries),
		InUse:     p.inUse,
		Free:      len(p.entries) - p.inUse,
		Hits:      p.hits,
		Misses:    p.misses,
	}
}

// Len returns the number of items the pool owns.
func (p *Pool[T]) Len() int {
	return len(p.entries)
}

// Contains reports whether item was created by this pool and not yet
// disposed.
func (p *Pool[T]) Contains(item T) bool {
	_, ok := p.index[item]
	return ok
}

// InUse reports whether item is currently handed out.
func (p *Pool[T]) InUse(item T) bool {
	idx, ok := p.index[item]
	return ok && p.entries[idx].inUse
}

// Disposed reports whether Dispose has been called.
func (p *Pool[T]) Disposed() bool {
	return p.disposed
}

func (p *Pool[T]) firstFreeEntry() (*entry[T], int) {
	for i := p.firstFree; i < len(p.entries); i++ {
		if !p.entries[i].inUse {
			return p.entries[i], i
		}
	}
	p.firstFree = len(p.entries)
	return nil, -1
}

func (p *Pool[T]) newEntry() (*entry[T], error) {
	item, err := p.create()
	if err != nil {
		return nil, p.hookError("create", err)
	}
	if _, dup := p.index[item]; dup {
		return nil, poolerrors.New(poolerrors.ErrorTypeHook, "create returned an item the pool already owns").
			WithDetail("pool", p.opts.name)
	}

	e := &entry[T]{
		item:      item,
		onDispose: p.hooks.OnDestroy,
	}
	p.entries = append(p.entries, e)
	p.index[item] = len(p.entries) - 1
	p.notify(EventCreate)

	p.opts.logger.Debug("pool grew",
		zap.String("pool", p.opts.name),
		zap.Int("size", len(p.entries)))

	return e, nil
}

func (p *Pool[T]) notify(event Event) {
	if p.opts.observer != nil {
		p.opts.observer.Observe(p.opts.name, event, p.Stats())
	}
}

func (p *Pool[T]) hookError(phase string, err error) *poolerrors.Error {
	return poolerrors.Wrap(err, poolerrors.ErrorTypeHook, phase+" hook failed").
		WithDetail("pool", p.opts.name).
		WithDetail("phase", phase)
}

func (p *Pool[T]) disposedError(op string) error {
	return poolerrors.New(poolerrors.ErrorTypeDisposed, "pool already disposed").
		WithDetail("pool", p.opts.name).
		WithDetail("operation", op)
}
