// Package rbtree implements an ordered associative container as a red-black
// tree whose nodes live in a slotpool.Pool and refer to each other by 32-bit
// address.
//
// Nodes carry no parent link. Every operation that needs the path back to
// the root records it on a fixed-capacity ancestor stack while descending,
// and the insert and delete fixups consume that stack bottom-up.
package rbtree

import (
	"cmp"
	"fmt"

	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// Item is the object stored in each tree node.
type Item[K, V any] struct {
	Key   K
	Value V
}

// Option configures a Tree.
type Option func(*treeOptions)

type treeOptions struct {
	blockSize int
	poolOpts  []slotpool.Option
}

// WithBlockSize sets the byte size of the node blocks. Non-positive values
// select slotpool.DefaultBlockSize.
func WithBlockSize(bytes int) Option {
	return func(o *treeOptions) {
		o.blockSize = bytes
	}
}

// WithMaxNodes caps the number of nodes the tree can hold at once. Insertions
// beyond the cap fail with slotpool.ErrCapacityExhausted.
func WithMaxNodes(n uint32) Option {
	return func(o *treeOptions) {
		o.poolOpts = append(o.poolOpts, slotpool.WithMaxSlots(n))
	}
}

// Tree is a red-black tree with an API similar to C++ STL's std::set/std::map.
//
// Keys are ordered by a three-way comparator. Keys that compare equal are
// duplicates: Insert rejects them and Put replaces the stored item.
// A Tree is not safe for concurrent use.
type Tree[K, V any] struct {
	pool    *slotpool.Pool[node[K, V], *node[K, V]]
	compare func(a, b K) int
	opts    treeOptions
	root    slotpool.Addr
	count   int
	// version changes on every structural modification. Iterators compare it
	// against the value they captured to decide whether their stack is stale.
	version uint64
}

// New creates an empty tree ordered by compare, which must return a negative
// number, zero or a positive number when a is less than, equal to or greater than b.
func New[K, V any](compare func(a, b K) int, opts ...Option) *Tree[K, V] {
	var cfg treeOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Tree[K, V]{
		pool:    slotpool.New[node[K, V]](cfg.blockSize, cfg.poolOpts...),
		compare: compare,
		opts:    cfg,
		root:    slotpool.Nil,
		version: 1,
	}
}

// NewOrdered creates an empty tree for naturally ordered keys.
func NewOrdered[K cmp.Ordered, V any](opts ...Option) *Tree[K, V] {
	return New[K, V](cmp.Compare[K], opts...)
}

// Len returns the number of elements in the tree.
func (tree *Tree[K, V]) Len() int {
	return tree.count
}

// Empty reports whether the tree holds no elements.
func (tree *Tree[K, V]) Empty() bool {
	return tree.count == 0
}

// PoolStats returns the counters of the node allocator.
func (tree *Tree[K, V]) PoolStats() slotpool.Stats {
	return tree.pool.Stats()
}

// Clear removes all the nodes from the tree and releases the node blocks.
func (tree *Tree[K, V]) Clear() {
	tree.pool.Reset()
	tree.root = slotpool.Nil
	tree.count = 0
	tree.version++
}

// Clone performs a deep copy of the tree into a fresh allocator. The copy has
// the same shape and colors as the original.
func (tree *Tree[K, V]) Clone() *Tree[K, V] {
	clone := &Tree[K, V]{
		pool:    slotpool.New[node[K, V]](tree.opts.blockSize, tree.opts.poolOpts...),
		compare: tree.compare,
		opts:    tree.opts,
		count:   tree.count,
		version: 1,
	}
	clone.root = clone.copySubtree(tree, tree.root)

	return clone
}

func (tree *Tree[K, V]) copySubtree(src *Tree[K, V], addr slotpool.Addr) slotpool.Addr {
	if addr == slotpool.Nil {
		return slotpool.Nil
	}

	orig := src.node(addr)

	dst, err := tree.pool.Allocate()
	// The clone has the same node cap as the source and holds no more nodes.
	doAssert(err == nil)

	left := tree.copySubtree(src, orig.left)
	right := tree.copySubtree(src, orig.right)

	*tree.node(dst) = node[K, V]{left: left, right: right, color: orig.color, item: orig.item}

	return dst
}

// Get is a convenience function for finding the value stored under key.
func (tree *Tree[K, V]) Get(key K) (V, bool) {
	var st stack

	addr, _ := tree.locate(key, &st)
	if addr == slotpool.Nil {
		var zero V

		return zero, false
	}

	return tree.node(addr).item.Value, true
}

// Has reports whether key is present.
func (tree *Tree[K, V]) Has(key K) bool {
	var st stack

	addr, _ := tree.locate(key, &st)

	return addr != slotpool.Nil
}

// Insert adds key with value unless an equal key is already present. It
// returns an iterator at the node holding key and true when a node was
// created. On a duplicate the existing item is left untouched and the iterator
// points at it. A non-nil error means the allocator is exhausted; the tree is
// unchanged in that case.
func (tree *Tree[K, V]) Insert(key K, value V) (Iterator[K, V], bool, error) {
	var st stack

	addr, diff := tree.locate(key, &st)
	if addr != slotpool.Nil {
		return tree.iteratorAt(addr, &st), false, nil
	}

	addr, err := tree.link(Item[K, V]{Key: key, Value: value}, diff, &st)
	if err != nil {
		return tree.Limit(), false, err
	}

	// The fixup consumed the stack; the iterator re-descends on first move.
	return Iterator[K, V]{tree: tree, node: addr}, true, nil
}

// Put stores value under key. If an equal key is present its item is
// overwritten in place and returned with replaced set to true.
func (tree *Tree[K, V]) Put(key K, value V) (old Item[K, V], replaced bool, err error) {
	var st stack

	addr, diff := tree.locate(key, &st)
	if addr != slotpool.Nil {
		n := tree.node(addr)
		old = n.item
		n.item = Item[K, V]{Key: key, Value: value}

		return old, true, nil
	}

	_, err = tree.link(Item[K, V]{Key: key, Value: value}, diff, &st)

	return old, false, err
}

// DeleteWithKey deletes the item with the given key. Returns true iff the
// item was found.
func (tree *Tree[K, V]) DeleteWithKey(key K) bool {
	var st stack

	addr, _ := tree.locate(key, &st)
	if addr == slotpool.Nil {
		return false
	}

	tree.remove(addr, &st)

	return true
}

// Erase deletes key and returns the number of removed items, 0 or 1.
func (tree *Tree[K, V]) Erase(key K) int {
	if tree.DeleteWithKey(key) {
		return 1
	}

	return 0
}

// DeleteWithIterator deletes the current item. The iterator is invalid afterwards.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (tree *Tree[K, V]) DeleteWithIterator(iter Iterator[K, V]) {
	doAssert(iter.tree == tree && iter.node != slotpool.Nil)

	iter.sync()
	tree.remove(iter.node, &iter.st)
}

// Private methods.

func (tree *Tree[K, V]) node(addr slotpool.Addr) *node[K, V] {
	return tree.pool.Get(addr)
}

func (tree *Tree[K, V]) isRed(addr slotpool.Addr) bool {
	return addr != slotpool.Nil && tree.node(addr).color == red
}

// locate descends from the root looking for key. Every node is pushed onto st
// right before the descent steps into one of its children, so st ends up
// holding the ancestors of the returned node, root first. When key is absent
// the result is Nil, the stack top is the last node visited and diff is the
// comparison of key against it.
func (tree *Tree[K, V]) locate(key K, st *stack) (slotpool.Addr, int) {
	st.reset()

	diff := 0

	for cur := tree.root; cur != slotpool.Nil; {
		n := tree.node(cur)

		diff = tree.compare(key, n.item.Key)
		if diff == 0 {
			return cur, 0
		}

		st.push(cur)

		if diff < 0 {
			cur = n.left
		} else {
			cur = n.right
		}
	}

	return slotpool.Nil, diff
}

// link allocates a red leaf for item below the stack top, on the side given
// by diff, and rebalances.
func (tree *Tree[K, V]) link(item Item[K, V], diff int, st *stack) (slotpool.Addr, error) {
	addr, err := tree.pool.Allocate()
	if err != nil {
		return slotpool.Nil, fmt.Errorf("insert node: %w", err)
	}

	*tree.node(addr) = node[K, V]{left: slotpool.Nil, right: slotpool.Nil, color: red, item: item}

	parent := st.peek()

	switch {
	case parent == slotpool.Nil:
		tree.root = addr
	case diff < 0:
		tree.node(parent).left = addr
	default:
		tree.node(parent).right = addr
	}

	tree.insertFixup(addr, st)

	tree.count++
	tree.version++

	return addr, nil
}

// remove unlinks del, whose ancestors are on st, and rebalances.
//
// A node with two children is replaced by its in-order successor: the
// successor record is moved into del's position instead of copying items, so
// del is the only address that stops being valid.
func (tree *Tree[K, V]) remove(del slotpool.Addr, st *stack) { //nolint:funlen // both splice shapes share the recolor tail.
	dn := tree.node(del)
	parent := st.peek()

	var (
		child        slotpool.Addr
		removedColor color
		isParentLeft bool
	)

	if dn.left != slotpool.Nil && dn.right != slotpool.Nil {
		// Reserve del's stack slot; the successor takes it once found.
		slot := st.depth()
		st.push(del)

		succ := dn.right
		for tree.node(succ).left != slotpool.Nil {
			st.push(succ)
			succ = tree.node(succ).left
		}

		sn := tree.node(succ)
		st.set(slot, succ)
		tree.replaceChild(parent, del, succ)
		sn.left = dn.left
		child = sn.right

		if succ == dn.right {
			isParentLeft = false
		} else {
			tree.node(st.peek()).left = sn.right
			sn.right = dn.right
			isParentLeft = true
		}

		removedColor = sn.color
		sn.color = dn.color
	} else {
		child = dn.left
		if child == slotpool.Nil {
			child = dn.right
		}

		isParentLeft = parent != slotpool.Nil && tree.node(parent).left == del
		tree.replaceChild(parent, del, child)
		removedColor = dn.color
	}

	switch {
	case removedColor == red:
	case child != slotpool.Nil:
		// A black node with a single child always has a red one.
		tree.node(child).color = black
	default:
		tree.deleteFixup(isParentLeft, st)
	}

	tree.pool.Deallocate(&del)
	tree.count--
	tree.version++
}

// replaceChild points the link of parent that held old at replacement.
// A Nil parent means old was the root.
func (tree *Tree[K, V]) replaceChild(parent, old, replacement slotpool.Addr) {
	if parent == slotpool.Nil {
		tree.root = replacement

		return
	}

	pn := tree.node(parent)
	if pn.left == old {
		pn.left = replacement
	} else {
		pn.right = replacement
	}
}
