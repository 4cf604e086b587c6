package cache

import (
	"context"
	"fmt"
	"sync"
)

type memoEntry[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Memo memoizes the result of a factory per key. Concurrent callers for the
// same key share one in-flight computation. Failed computations are evicted
// so the next caller retries.
type Memo[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*memoEntry[V]
}

// NewMemo returns an empty Memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{entries: make(map[K]*memoEntry[V])}
}

// GetOrCompute returns the cached value for key or runs factory exactly once
// for all concurrent callers. The factory runs detached from the caller's
// cancellation so one impatient caller does not fail the others; a caller
// whose ctx ends stops waiting and gets ctx.Err().
func (m *Memo[K, V]) GetOrCompute(ctx context.Context, key K, factory func(context.Context) (V, error)) (V, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry[V]{done: make(chan struct{})}
		m.entries[key] = e
		m.mu.Unlock()
		go m.run(context.WithoutCancel(ctx), key, e, factory)
	} else {
		m.mu.Unlock()
	}

	select {
	case <-e.done:
		return e.val, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (m *Memo[K, V]) run(ctx context.Context, key K, e *memoEntry[V], factory func(context.Context) (V, error)) {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.err = &PanicError{Value: r}
			m.evict(key, e)
		}
	}()
	e.val, e.err = factory(ctx)
	if e.err != nil {
		m.evict(key, e)
	}
}

func (m *Memo[K, V]) evict(key K, e *memoEntry[V]) {
	m.mu.Lock()
	if cur, ok := m.entries[key]; ok && cur == e {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// Peek returns a completed, successful value without starting a computation.
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	var zero V
	if !ok {
		return zero, false
	}
	select {
	case <-e.done:
		if e.err != nil {
			return zero, false
		}
		return e.val, true
	default:
		return zero, false
	}
}

// Remove drops key so the next GetOrCompute recomputes it. Callers already
// waiting on an in-flight computation still receive its result.
func (m *Memo[K, V]) Remove(key K) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len reports the number of cached or in-flight keys.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// PanicError wraps a value recovered from a panicking factory.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cache factory panicked: %v", e.Value)
}
