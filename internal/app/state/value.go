// Package state delivers component outputs to observers as immutable snapshots.
package state

import "sync"

type Handle uint64

// Value holds the latest snapshot of T and notifies observers on every Set.
// Callers must not mutate a T after passing it to Set.
type Value[T any] struct {
	mu        sync.RWMutex
	current   T
	version   uint64
	nextID    Handle
	observers map[Handle]func(T)
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, observers: make(map[Handle]func(T))}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Version increases by one on every Set.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	v.current = next
	v.version++
	fns := make([]func(T), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Subscribe registers fn for future snapshots. It does not replay the current one.
func (v *Value[T]) Subscribe(fn func(T)) Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextID++
	v.observers[v.nextID] = fn
	return v.nextID
}

func (v *Value[T]) Unsubscribe(h Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.observers, h)
}
