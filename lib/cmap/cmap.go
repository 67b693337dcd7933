// Package cmap is a generic wrapper around sync.Map, adapted from the
// teacher's lib/concurrent_map package. It backs the client's daemon
// connection cache in core/client.
package cmap

import "sync"

// Map is a type-safe sync.Map.
type Map[K comparable, V any] struct {
	m sync.Map
}

// NewMap constructs an empty Map.
func NewMap[K comparable, V any]() Map[K, V] {
	return Map[K, V]{}
}

// Get returns the value for k, if present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set stores v under k.
func (m *Map[K, V]) Set(k K, v V) {
	m.m.Store(k, v)
}

// Delete removes k.
func (m *Map[K, V]) Delete(k K) {
	m.m.Delete(k)
}

// Range visits every entry until f returns false.
func (m *Map[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}
