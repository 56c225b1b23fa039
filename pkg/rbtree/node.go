package rbtree

import "github.com/Sumatoshi-tech/rbslot/pkg/slotpool"

type color bool

const (
	red   color = false
	black color = true
)

// maxDepth bounds the ancestor stack. A red-black tree over at most 2^32
// nodes is never deeper than 2*log2(2^32+1), which stays below 64.
const maxDepth = 64

type node[K, V any] struct {
	left, right slotpool.Addr
	color       color
	item        Item[K, V]
}

// FreeLink reuses the left link as the free-list pointer while the slot is
// not part of the tree.
func (n *node[K, V]) FreeLink() *slotpool.Addr {
	return &n.left
}

// stack is the ancestor path of a node, root first.
type stack struct {
	addrs [maxDepth]slotpool.Addr
	size  int
}

func (st *stack) reset() {
	st.size = 0
}

func (st *stack) depth() int {
	return st.size
}

func (st *stack) push(addr slotpool.Addr) {
	doAssert(st.size < maxDepth)

	st.addrs[st.size] = addr
	st.size++
}

// pop removes and returns the top address, or Nil when the stack is empty.
func (st *stack) pop() slotpool.Addr {
	if st.size == 0 {
		return slotpool.Nil
	}

	st.size--

	return st.addrs[st.size]
}

// peek returns the top address, or Nil when the stack is empty.
func (st *stack) peek() slotpool.Addr {
	if st.size == 0 {
		return slotpool.Nil
	}

	return st.addrs[st.size-1]
}

func (st *stack) set(idx int, addr slotpool.Addr) {
	st.addrs[idx] = addr
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
