package rbtree

import (
	"cmp"
	"iter"
)

// Set is an ordered set of keys backed by a Tree.
type Set[K any] struct {
	tree *Tree[K, struct{}]
}

// NewSet creates an empty set of naturally ordered keys.
func NewSet[K cmp.Ordered](opts ...Option) *Set[K] {
	return &Set[K]{tree: NewOrdered[K, struct{}](opts...)}
}

// NewSetFunc creates an empty set ordered by compare.
func NewSetFunc[K any](compare func(a, b K) int, opts ...Option) *Set[K] {
	return &Set[K]{tree: New[K, struct{}](compare, opts...)}
}

// Insert adds key and reports whether it was absent.
func (s *Set[K]) Insert(key K) (bool, error) {
	_, inserted, err := s.tree.Insert(key, struct{}{})

	return inserted, err
}

// Contains reports whether key is in the set.
func (s *Set[K]) Contains(key K) bool {
	return s.tree.Has(key)
}

// Delete removes key and reports whether it was present.
func (s *Set[K]) Delete(key K) bool {
	return s.tree.DeleteWithKey(key)
}

// Len returns the number of keys.
func (s *Set[K]) Len() int {
	return s.tree.Len()
}

// Min returns the smallest key.
func (s *Set[K]) Min() (K, bool) {
	return firstKey(s.tree.Min())
}

// Max returns the largest key.
func (s *Set[K]) Max() (K, bool) {
	return firstKey(s.tree.Max())
}

// All returns the keys in ascending order.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range s.tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Verify reports whether the underlying tree is consistent.
func (s *Set[K]) Verify() bool {
	return s.tree.Verify()
}

// Tree exposes the underlying tree for iterator-based access.
func (s *Set[K]) Tree() *Tree[K, struct{}] {
	return s.tree
}

func firstKey[K, V any](it Iterator[K, V]) (K, bool) {
	item := it.Item()
	if item == nil {
		var zero K

		return zero, false
	}

	return item.Key, true
}
