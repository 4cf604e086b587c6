// Package cache provides the two in-memory caches the build relies on:
// a single-flight memoizing cache for expensive idempotent lookups and a
// capacity-bounded LRU with an eviction callback.
package cache
