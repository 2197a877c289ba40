package spawner

// Host is the runtime that owns instance handles. Any environment that can
// create, enable, disable, reparent and destroy opaque instances satisfies
// it; internal/scene provides an in-memory one.
//
// K is the prototype key type and I the instance handle type. Parents are
// instance handles too.
type Host[K comparable, I comparable] interface {
	// Instantiate clones prototype under parent.
	Instantiate(prototype K, parent I) (I, error)
	// Destroy removes instance from the host.
	Destroy(instance I) error
	// SetActive enables or disables instance.
	SetActive(instance I, active bool) error
	// SetParent moves instance under parent.
	SetParent(instance I, parent I) error
}

// Callbacks are optional user hooks that run after the spawner's own host
// side effects. A nil callback is skipped.
type Callbacks[K comparable, I comparable] struct {
	// OnCreate runs after a new instance of key was instantiated
	OnCreate func(key K, instance I) error
	// OnGet runs after an instance was activated for a caller
	OnGet func(instance I) error
	// OnRelease runs after an instance was deactivated and moved under root
	OnRelease func(instance I) error
	// OnDestroy runs after an instance was destroyed in the host
	OnDestroy func(instance I) error
}
