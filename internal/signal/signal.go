// Package signal provides observable values: a committed value plus
// subscribers that are told about every change right after it is committed.
package signal

// file: internal/signal/signal.go

import (
	"sync"
)

// Value holds a T and notifies subscribers after each Set. Readers never
// observe a partially updated value; subscribers see changes in commit order.
type Value[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int

	// publish serializes notification so subscribers see commits in order.
	publish sync.Mutex
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the committed value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set commits next and then notifies subscribers synchronously.
func (v *Value[T]) Set(next T) {
	v.publish.Lock()
	defer v.publish.Unlock()

	v.mu.Lock()
	v.value = next
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Update commits fn(current) atomically and notifies subscribers.
func (v *Value[T]) Update(fn func(T) T) T {
	v.publish.Lock()
	defer v.publish.Unlock()

	v.mu.Lock()
	next := fn(v.value)
	v.value = next
	subs := make([]func(T), 0, len(v.subs))
	for _, s := range v.subs {
		subs = append(subs, s)
	}
	v.mu.Unlock()

	for _, s := range subs {
		s(next)
	}
	return next
}

// Subscribe registers fn for future changes and returns a function that
// removes it. fn must not call Set or Update on the same Value.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
