package rbtree

import "github.com/Sumatoshi-tech/rbslot/pkg/slotpool"

// rotateLeft performs a left rotation around pivot and returns the node that
// took its place. parent is the parent of pivot, Nil for the root.
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[K, V]) rotateLeft(parent, pivot slotpool.Addr) slotpool.Addr {
	pn := tree.node(pivot)
	child := pn.right
	cn := tree.node(child)

	pn.right = cn.left
	cn.left = pivot
	tree.replaceChild(parent, pivot, child)

	return child
}

// rotateRight is the mirror image of rotateLeft.
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[K, V]) rotateRight(parent, pivot slotpool.Addr) slotpool.Addr {
	pn := tree.node(pivot)
	child := pn.left
	cn := tree.node(child)

	pn.left = cn.right
	cn.right = pivot
	tree.replaceChild(parent, pivot, child)

	return child
}

// insertFixup restores the red-black properties after the red node x was
// linked below the top of st.
func (tree *Tree[K, V]) insertFixup(x slotpool.Addr, st *stack) { //nolint:gocognit // mirrored cases.
	for {
		parent := st.pop()
		if parent == slotpool.Nil {
			tree.node(x).color = black

			return
		}

		pn := tree.node(parent)
		if pn.color == black {
			return
		}

		// A red parent is never the root, so the grandparent exists.
		grand := st.pop()
		doAssert(grand != slotpool.Nil)

		gn := tree.node(grand)

		if parent == gn.left {
			uncle := gn.right
			if tree.isRed(uncle) {
				pn.color = black
				tree.node(uncle).color = black
				gn.color = red
				x = grand

				continue
			}

			if x == pn.right {
				tree.rotateLeft(grand, parent)
			}

			top := tree.rotateRight(st.peek(), grand)
			tree.node(top).color = black
			gn.color = red

			return
		}

		uncle := gn.left
		if tree.isRed(uncle) {
			pn.color = black
			tree.node(uncle).color = black
			gn.color = red
			x = grand

			continue
		}

		if x == pn.left {
			tree.rotateRight(grand, parent)
		}

		top := tree.rotateLeft(st.peek(), grand)
		tree.node(top).color = black
		gn.color = red

		return
	}
}

// deleteFixup rebalances after a black node was removed and replaced by a
// Nil child. The child's parent is the top of st; isParentLeft tells which
// side of it the deficit is on, since a Nil child cannot be compared.
func (tree *Tree[K, V]) deleteFixup(isParentLeft bool, st *stack) {
	for {
		parent := st.pop()
		if parent == slotpool.Nil {
			break
		}

		var done bool
		if isParentLeft {
			done = tree.deleteFixupLeft(parent, st)
		} else {
			done = tree.deleteFixupRight(parent, st)
		}

		if done {
			break
		}

		grand := st.peek()
		isParentLeft = grand != slotpool.Nil && tree.node(grand).left == parent
	}

	if tree.root != slotpool.Nil {
		tree.node(tree.root).color = black
	}
}

// deleteFixupLeft handles a deficit in the left subtree of parent. It
// returns false when the deficit moved up to parent itself.
func (tree *Tree[K, V]) deleteFixupLeft(parent slotpool.Addr, st *stack) bool {
	pn := tree.node(parent)
	sibling := pn.right
	sn := tree.node(sibling)

	if sn.color == red {
		tree.rotateLeft(st.peek(), parent)
		sn.color = black
		pn.color = red
		st.push(sibling)

		sibling = pn.right
		sn = tree.node(sibling)
	}

	if tree.isRed(sn.left) || tree.isRed(sn.right) {
		if !tree.isRed(sn.right) {
			sibling = tree.rotateRight(parent, sibling)
			sn = tree.node(sibling)
		}

		tree.rotateLeft(st.peek(), parent)
		sn.color = pn.color
		pn.color = black
		tree.node(sn.right).color = black

		return true
	}

	sn.color = red
	if pn.color == red {
		pn.color = black

		return true
	}

	return false
}

// deleteFixupRight is the mirror image of deleteFixupLeft.
func (tree *Tree[K, V]) deleteFixupRight(parent slotpool.Addr, st *stack) bool {
	pn := tree.node(parent)
	sibling := pn.left
	sn := tree.node(sibling)

	if sn.color == red {
		tree.rotateRight(st.peek(), parent)
		sn.color = black
		pn.color = red
		st.push(sibling)

		sibling = pn.left
		sn = tree.node(sibling)
	}

	if tree.isRed(sn.left) || tree.isRed(sn.right) {
		if !tree.isRed(sn.left) {
			sibling = tree.rotateLeft(parent, sibling)
			sn = tree.node(sibling)
		}

		tree.rotateRight(st.peek(), parent)
		sn.color = pn.color
		pn.color = black
		tree.node(sn.left).color = black

		return true
	}

	sn.color = red
	if pn.color == red {
		pn.color = black

		return true
	}

	return false
}
