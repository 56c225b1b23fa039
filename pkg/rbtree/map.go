package rbtree

import (
	"cmp"
	"iter"
)

// Map is an ordered key/value map backed by a Tree.
type Map[K, V any] struct {
	tree *Tree[K, V]
}

// NewMap creates an empty map with naturally ordered keys.
func NewMap[K cmp.Ordered, V any](opts ...Option) *Map[K, V] {
	return &Map[K, V]{tree: NewOrdered[K, V](opts...)}
}

// NewMapFunc creates an empty map ordered by compare.
func NewMapFunc[K, V any](compare func(a, b K) int, opts ...Option) *Map[K, V] {
	return &Map[K, V]{tree: New[K, V](compare, opts...)}
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.tree.Get(key)
}

// Set stores value under key, replacing any previous value.
func (m *Map[K, V]) Set(key K, value V) error {
	_, _, err := m.tree.Put(key, value)

	return err
}

// Insert stores value under key only if key is absent and reports whether it did.
func (m *Map[K, V]) Insert(key K, value V) (bool, error) {
	_, inserted, err := m.tree.Insert(key, value)

	return inserted, err
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	return m.tree.DeleteWithKey(key)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// All returns the entries in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.tree.All()
}

// Keys returns the keys in ascending order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range m.tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Verify reports whether the underlying tree is consistent.
func (m *Map[K, V]) Verify() bool {
	return m.tree.Verify()
}

// Tree exposes the underlying tree for iterator-based access.
func (m *Map[K, V]) Tree() *Tree[K, V] {
	return m.tree
}
