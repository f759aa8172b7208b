// Package keylock provides mutexes keyed by comparable values.
package keylock

import (
	"context"
	"sync"
)

// Map is a set of mutexes indexed by key. Locks for keys which nobody holds
// or waits on are released, so the map does not grow with the number of
// distinct keys ever seen.
type Map[K comparable] struct {
	mu sync.Mutex
	m  map[K]*entry
}

type entry struct {
	// sem holds a value while the key is locked.
	sem chan struct{}
	// refs is the number of goroutines holding or waiting on sem.
	// It is guarded by the map's mutex.
	refs int
}

// New returns a new keyed lock map.
func New[K comparable]() *Map[K] {
	return &Map[K]{
		m: make(map[K]*entry),
	}
}

// Lock locks the mutex for key, waiting until it is available or ctx is done.
// On success, the returned function unlocks it and must be called exactly
// once. If ctx ends first, Lock returns its error and the key is not locked.
func (m *Map[K]) Lock(ctx context.Context, key K) (unlock func(), err error) {
	m.mu.Lock()
	e := m.m[key]
	if e == nil {
		e = &entry{sem: make(chan struct{}, 1)}
		m.m[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			m.release(key, e)
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}
}

func (m *Map[K]) release(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.m, key)
	}
}

// Len returns the number of keys currently locked or waited upon.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}
