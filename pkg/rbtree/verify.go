package rbtree

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// ErrInvariantViolated is wrapped by every error returned from Check.
var ErrInvariantViolated = errors.New("rbtree invariant violated")

// Verify reports whether the tree satisfies all red-black and ordering invariants.
func (tree *Tree[K, V]) Verify() bool {
	return tree.Check() == nil
}

// Check walks the whole tree and describes the first broken invariant: a red
// root, a red node with a red child, unequal black heights, keys out of
// order, or a node count that disagrees with Len.
func (tree *Tree[K, V]) Check() error {
	if tree.root == slotpool.Nil {
		if tree.count != 0 {
			return fmt.Errorf("%w: empty tree reports %d items", ErrInvariantViolated, tree.count)
		}

		return nil
	}

	if tree.isRed(tree.root) {
		return fmt.Errorf("%w: red root", ErrInvariantViolated)
	}

	// The leftmost path fixes the black height every other path must match.
	blackHeight := 0
	for cur := tree.root; cur != slotpool.Nil; cur = tree.node(cur).left {
		if !tree.isRed(cur) {
			blackHeight++
		}
	}

	chk := checker[K, V]{tree: tree, blackHeight: blackHeight}

	err := chk.walk(tree.root, 0)
	if err != nil {
		return err
	}

	if chk.visited != tree.count {
		return fmt.Errorf("%w: found %d nodes, Len is %d", ErrInvariantViolated, chk.visited, tree.count)
	}

	return nil
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (tree *Tree[K, V]) Height() int {
	return tree.height(tree.root)
}

func (tree *Tree[K, V]) height(addr slotpool.Addr) int {
	if addr == slotpool.Nil {
		return 0
	}

	n := tree.node(addr)

	return 1 + max(tree.height(n.left), tree.height(n.right))
}

type checker[K, V any] struct {
	tree        *Tree[K, V]
	prev        *K
	blackHeight int
	visited     int
}

// walk visits the subtree in order. blacks counts the black nodes above addr.
func (chk *checker[K, V]) walk(addr slotpool.Addr, blacks int) error {
	tree := chk.tree

	if addr == slotpool.Nil {
		if blacks != chk.blackHeight {
			return fmt.Errorf("%w: black height %d, want %d", ErrInvariantViolated, blacks, chk.blackHeight)
		}

		return nil
	}

	n := tree.node(addr)
	if n.color == red && (tree.isRed(n.left) || tree.isRed(n.right)) {
		return fmt.Errorf("%w: red node %v has a red child", ErrInvariantViolated, n.item.Key)
	}

	if n.color == black {
		blacks++
	}

	err := chk.walk(n.left, blacks)
	if err != nil {
		return err
	}

	if chk.prev != nil && tree.compare(*chk.prev, n.item.Key) >= 0 {
		return fmt.Errorf("%w: key %v follows %v", ErrInvariantViolated, n.item.Key, *chk.prev)
	}

	chk.prev = &n.item.Key
	chk.visited++

	return chk.walk(n.right, blacks)
}
