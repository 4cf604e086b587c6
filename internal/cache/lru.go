package cache

import (
	"container/list"
	"log/slog"
	"sync"
)

type lruEntry[K comparable, V any] struct {
	key      K
	val      V
	evicting bool
}

// LRU is a capacity-bounded cache with access-order promotion.
//
// The eviction callback runs outside the lock while the victim is still
// readable through Get and Peek; the entry is removed only after the
// callback returns (or panics). Re-adding a victim during that window keeps
// it and evicts the next least recently used entry instead.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[K]*list.Element
	pending  int
	onEvict  func(K, V)
}

// NewLRU creates an LRU holding at most capacity entries. capacity < 1 is
// treated as 1. onEvict may be nil.
func NewLRU[K comparable, V any](capacity int, onEvict func(key K, value V)) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
		onEvict:  onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	e := el.Value.(*lruEntry[K, V])
	if !e.evicting {
		c.ll.MoveToFront(el)
	}
	return e.val, true
}

// Peek returns the value for key without changing its recency.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		return el.Value.(*lruEntry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// Add inserts or updates key and reports whether any entry was evicted.
func (c *LRU[K, V]) Add(key K, value V) bool {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry[K, V])
		if e.evicting {
			e.evicting = false
			c.pending--
		}
		e.val = value
		c.ll.MoveToFront(el)
	} else {
		c.items[key] = c.ll.PushFront(&lruEntry[K, V]{key: key, val: value})
	}
	victims := c.collectLocked()
	c.mu.Unlock()

	c.finish(victims)
	return len(victims) > 0
}

// Remove deletes key without invoking the eviction callback.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	if el.Value.(*lruEntry[K, V]).evicting {
		c.pending--
	}
	c.ll.Remove(el)
	delete(c.items, key)
	return true
}

// Len reports the number of live entries, excluding ones being evicted.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len() - c.pending
}

// Keys returns live keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*lruEntry[K, V]); !e.evicting {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (c *LRU[K, V]) collectLocked() []*list.Element {
	var victims []*list.Element
	el := c.ll.Back()
	for c.ll.Len()-c.pending > c.capacity && el != nil {
		e := el.Value.(*lruEntry[K, V])
		if !e.evicting {
			e.evicting = true
			c.pending++
			victims = append(victims, el)
		}
		el = el.Prev()
	}
	return victims
}

func (c *LRU[K, V]) finish(victims []*list.Element) {
	for _, el := range victims {
		c.mu.Lock()
		e := el.Value.(*lruEntry[K, V])
		key, val := e.key, e.val
		c.mu.Unlock()

		c.notify(key, val)

		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == el && e.evicting {
			c.ll.Remove(el)
			delete(c.items, key)
			c.pending--
		}
		c.mu.Unlock()
	}
}

func (c *LRU[K, V]) notify(key K, val V) {
	if c.onEvict == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("LRU eviction callback panicked", slog.Any("key", key), slog.Any("panic", r))
		}
	}()
	c.onEvict(key, val)
}
