package rbtree

import (
	"iter"

	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// Iterator allows scanning tree elements in sort order.
//
// Nodes have no parent links, so an iterator carries the ancestor path of its
// node. Iterator invalidation rule is the same as C++ std::map<>'s. That
// is, if you delete the element that an iterator points to, the
// iterator becomes invalid. For other operation types, the iterator
// remains valid: a path captured before a later insert or delete is rebuilt
// from the node's key on the next move.
type Iterator[K, V any] struct {
	tree     *Tree[K, V]
	node     slotpool.Addr
	negative bool
	version  uint64
	st       stack
}

// Min creates an iterator that points to the minimum item in the tree.
// If the tree is empty, returns Limit().
func (tree *Tree[K, V]) Min() Iterator[K, V] {
	if tree.root == slotpool.Nil {
		return tree.Limit()
	}

	it := Iterator[K, V]{tree: tree, version: tree.version}
	it.node = tree.leftmost(tree.root, &it.st)

	return it
}

// Max creates an iterator that points at the maximum item in the tree.
//
// If the tree is empty, returns NegativeLimit().
func (tree *Tree[K, V]) Max() Iterator[K, V] {
	if tree.root == slotpool.Nil {
		return tree.NegativeLimit()
	}

	it := Iterator[K, V]{tree: tree, version: tree.version}
	it.node = tree.rightmost(tree.root, &it.st)

	return it
}

// Limit creates an iterator that points beyond the maximum item in the tree.
func (tree *Tree[K, V]) Limit() Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: slotpool.Nil}
}

// NegativeLimit creates an iterator that points before the minimum item in the tree.
func (tree *Tree[K, V]) NegativeLimit() Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: slotpool.Nil, negative: true}
}

// Find returns an iterator at key, or Limit() when key is absent.
func (tree *Tree[K, V]) Find(key K) Iterator[K, V] {
	var st stack

	addr, _ := tree.locate(key, &st)
	if addr == slotpool.Nil {
		return tree.Limit()
	}

	return tree.iteratorAt(addr, &st)
}

// Locate returns an iterator at key together with 0 when key is present.
// Otherwise the iterator points at the last node examined during the descent,
// which is a neighbour of key in sort order, and the result is the sign of
// comparing key against it. An empty tree yields Limit() and 0.
func (tree *Tree[K, V]) Locate(key K) (Iterator[K, V], int) {
	var st stack

	addr, diff := tree.locate(key, &st)
	if addr != slotpool.Nil {
		return tree.iteratorAt(addr, &st), 0
	}

	last := st.pop()
	if last == slotpool.Nil {
		return tree.Limit(), 0
	}

	return tree.iteratorAt(last, &st), diff
}

// FindGE finds the smallest element N such that N >= Key, and returns the
// iterator pointing to the element. If no such element is found,
// returns tree.Limit().
func (tree *Tree[K, V]) FindGE(key K) Iterator[K, V] {
	it, diff := tree.Locate(key)
	if diff > 0 {
		return it.Next()
	}

	return it
}

// FindLE finds the largest element N such that N <= Key, and returns the
// iterator pointing to the element. If no such element is found,
// returns tree.NegativeLimit().
func (tree *Tree[K, V]) FindLE(key K) Iterator[K, V] {
	it, diff := tree.Locate(key)
	if it.Limit() {
		return tree.NegativeLimit()
	}

	if diff < 0 {
		return it.Prev()
	}

	return it
}

// All returns an in-order sequence of all key/value pairs.
// The tree must not be modified during iteration.
func (tree *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var st stack

		for cur := tree.root; cur != slotpool.Nil || st.depth() > 0; {
			if cur != slotpool.Nil {
				st.push(cur)
				cur = tree.node(cur).left

				continue
			}

			cur = st.pop()

			n := tree.node(cur)
			if !yield(n.item.Key, n.item.Value) {
				return
			}

			cur = n.right
		}
	}
}

// Backward returns a reverse-order sequence of all key/value pairs.
// The tree must not be modified during iteration.
func (tree *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var st stack

		for cur := tree.root; cur != slotpool.Nil || st.depth() > 0; {
			if cur != slotpool.Nil {
				st.push(cur)
				cur = tree.node(cur).right

				continue
			}

			cur = st.pop()

			n := tree.node(cur)
			if !yield(n.item.Key, n.item.Value) {
				return
			}

			cur = n.left
		}
	}
}

// Ascend yields the pairs with keys >= from in ascending order.
func (tree *Tree[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := tree.FindGE(from); !it.Limit(); it = it.Next() {
			item := it.Item()
			if !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Descend yields the pairs with keys <= from in descending order.
func (tree *Tree[K, V]) Descend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := tree.FindLE(from); !it.NegativeLimit(); it = it.Prev() {
			item := it.Item()
			if !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Equal checks for the underlying nodes equality.
func (it Iterator[K, V]) Equal(other Iterator[K, V]) bool {
	return it.node == other.node && it.negative == other.negative
}

// Limit checks if the iterator points beyond the max element in the tree.
func (it Iterator[K, V]) Limit() bool {
	return it.node == slotpool.Nil && !it.negative
}

// NegativeLimit checks if the iterator points before the minimum element in the tree.
func (it Iterator[K, V]) NegativeLimit() bool {
	return it.node == slotpool.Nil && it.negative
}

// Item returns the current element. Allows mutating the value; the key
// must not be changed in a way that alters its order.
//
// The result is nil if it.Limit() || it.NegativeLimit().
func (it Iterator[K, V]) Item() *Item[K, V] {
	if it.node == slotpool.Nil {
		return nil
	}

	return &it.tree.node(it.node).item
}

// Next creates a new iterator that points to the successor of the current element.
//
// REQUIRES: !it.Limit().
func (it Iterator[K, V]) Next() Iterator[K, V] {
	doAssert(!it.Limit())

	tree := it.tree
	if it.NegativeLimit() {
		return tree.Min()
	}

	it.sync()

	cur := tree.node(it.node)
	if cur.right != slotpool.Nil {
		it.st.push(it.node)
		it.node = tree.leftmost(cur.right, &it.st)

		return it
	}

	for child := it.node; ; {
		parent := it.st.pop()
		if parent == slotpool.Nil {
			return tree.Limit()
		}

		if tree.node(parent).left == child {
			it.node = parent

			return it
		}

		child = parent
	}
}

// Prev creates a new iterator that points to the predecessor of the current
// node.
//
// REQUIRES: !it.NegativeLimit().
func (it Iterator[K, V]) Prev() Iterator[K, V] {
	doAssert(!it.NegativeLimit())

	tree := it.tree
	if it.Limit() {
		return tree.Max()
	}

	it.sync()

	cur := tree.node(it.node)
	if cur.left != slotpool.Nil {
		it.st.push(it.node)
		it.node = tree.rightmost(cur.left, &it.st)

		return it
	}

	for child := it.node; ; {
		parent := it.st.pop()
		if parent == slotpool.Nil {
			return tree.NegativeLimit()
		}

		if tree.node(parent).right == child {
			it.node = parent

			return it
		}

		child = parent
	}
}

// sync rebuilds the ancestor path when the tree changed shape since it was captured.
func (it *Iterator[K, V]) sync() {
	if it.version == it.tree.version {
		return
	}

	addr, _ := it.tree.locate(it.tree.node(it.node).item.Key, &it.st)
	doAssert(addr == it.node)

	it.version = it.tree.version
}

func (tree *Tree[K, V]) iteratorAt(addr slotpool.Addr, st *stack) Iterator[K, V] {
	return Iterator[K, V]{tree: tree, node: addr, version: tree.version, st: *st}
}

// leftmost returns the minimum of the subtree at addr, pushing the path to it onto st.
func (tree *Tree[K, V]) leftmost(addr slotpool.Addr, st *stack) slotpool.Addr {
	for {
		left := tree.node(addr).left
		if left == slotpool.Nil {
			return addr
		}

		st.push(addr)
		addr = left
	}
}

// rightmost returns the maximum of the subtree at addr, pushing the path to it onto st.
func (tree *Tree[K, V]) rightmost(addr slotpool.Addr, st *stack) slotpool.Addr {
	for {
		right := tree.node(addr).right
		if right == slotpool.Nil {
			return addr
		}

		st.push(addr)
		addr = right
	}
}
