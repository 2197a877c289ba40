package pool

// Event identifies the pool mutation an Observer is told about.
type Event string

const (
	// EventCreate fires after a new entry was appended.
	EventCreate Event = "create"
	// EventAcquire fires after an entry was marked in use.
	EventAcquire Event = "acquire"
	// EventRelease fires after an entry was marked free.
	EventRelease Event = "release"
	// EventDestroy fires once per entry during Dispose.
	EventDestroy Event = "destroy"
	// EventDispose fires once, after Dispose cleared the pool.
	EventDispose Event = "dispose"
)

// Stats is a snapshot of pool bookkeeping.
type Stats struct {
	// Allocated is the number of entries the pool owns
	Allocated int `json:"allocated"`
	// InUse is the number of entries currently handed out
	InUse int `json:"in_use"`
	// Free is the number of entries available for reuse
	Free int `json:"free"`
	// Hits counts acquires that reused an existing entry
	Hits int64 `json:"hits"`
	// Misses counts acquires that had to create an entry
	Misses int64 `json:"misses"`
}

// Observer receives pool events. Observe runs synchronously on the caller's
// goroutine before the lifecycle hook of the same operation.
type Observer interface {
	Observe(pool string, event Event, stats Stats)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(pool string, event Event, stats Stats)

// Observe calls f.
func (f ObserverFunc) Observe(pool string, event Event, stats Stats) {
	f(pool, event, stats)
}
