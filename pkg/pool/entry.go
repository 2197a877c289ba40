package pool

// entry wraps one pooled item together with its used flag and the hook that
// tears it down. An entry is disposed at most once and never reused after.
type entry[T comparable] struct {
	item      T
	inUse     bool
	disposed  bool
	onDispose Hook[T]
}

func (e *entry[T]) dispose() error {
	if e.disposed {
		return nil
	}
	e.disposed = true
	if e.onDispose == nil {
		return nil
	}
	return e.onDispose(e.item)
}
