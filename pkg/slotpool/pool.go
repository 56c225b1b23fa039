// Package slotpool implements an index-addressed object pool.
//
// Elements live in fixed-size blocks that are never moved or released while
// the pool is in use, so a 32-bit Addr resolves to the same element for as long
// as it stays allocated. Freed slots are threaded into an intrusive free list
// through storage the element itself provides (see Slot), which makes reuse
// LIFO: the most recently freed slot is handed out first.
package slotpool

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"unsafe"

	"github.com/Sumatoshi-tech/rbslot/pkg/safeconv"
)

// Addr is the address of a slot inside a Pool.
type Addr uint32

// Nil is the reserved address meaning "no element". It is never returned by Allocate.
const Nil Addr = math.MaxUint32

// DefaultBlockSize is the block size in bytes used when none is configured.
const DefaultBlockSize = 4096

// ErrCapacityExhausted is returned by Allocate when every addressable slot is in use.
var ErrCapacityExhausted = errors.New("slot pool capacity exhausted")

// Slot is the constraint satisfied by pointers to pooled elements. FreeLink
// exposes a field of the element that the pool may overwrite while the slot
// is on the free list.
type Slot[T any] interface {
	*T
	FreeLink() *Addr
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	maxSlots uint32
}

// WithMaxSlots caps the number of distinct slots the pool will ever carve.
// Zero is ignored. Nil itself is never handed out, so the effective ceiling
// is math.MaxUint32 slots.
func WithMaxSlots(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSlots = n
		}
	}
}

// Pool is a block-based slot allocator for elements of type T.
type Pool[T any, S Slot[T]] struct {
	blocks        [][]T
	blockSize     int
	slotsPerBlock uint32
	shift         uint32
	mask          uint32
	pow2          bool
	carved        Addr
	free          Addr
	maxSlots      uint32
	live          int
	freeLen       int
}

// New creates a pool whose blocks span blockSize bytes. A non-positive
// blockSize selects DefaultBlockSize. Every block holds at least one slot.
func New[T any, S Slot[T]](blockSize int, opts ...Option) *Pool[T, S] {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	cfg := options{maxSlots: uint32(Nil)}
	for _, opt := range opts {
		opt(&cfg)
	}

	var zero T

	elemSize := max(safeconv.MustUintptrToInt(unsafe.Sizeof(zero)), 1)
	perBlock := safeconv.MustIntToUint32(max(blockSize/elemSize, 1))

	pool := &Pool[T, S]{
		blockSize:     blockSize,
		slotsPerBlock: perBlock,
		free:          Nil,
		maxSlots:      cfg.maxSlots,
	}

	if bits.OnesCount32(perBlock) == 1 {
		pool.pow2 = true
		pool.shift = uint32(bits.TrailingZeros32(perBlock))
		pool.mask = perBlock - 1
	}

	return pool
}

// Allocate returns the address of an unused slot. The slot contents are unspecified.
func (p *Pool[T, S]) Allocate() (Addr, error) {
	if p.free != Nil {
		addr := p.free
		p.free = *p.Get(addr).FreeLink()
		p.freeLen--
		p.live++

		return addr, nil
	}

	if uint32(p.carved) >= p.maxSlots {
		return Nil, fmt.Errorf("%w: limit %d slots", ErrCapacityExhausted, p.maxSlots)
	}

	if uint64(p.carved) == p.capacity() {
		p.blocks = append(p.blocks, make([]T, p.slotsPerBlock))
	}

	addr := p.carved
	p.carved++
	p.live++

	return addr, nil
}

// Deallocate returns the slot at *addr to the free list and resets *addr to Nil.
// Deallocating Nil is a no-op.
//
// REQUIRES: *addr is Nil or currently allocated.
func (p *Pool[T, S]) Deallocate(addr *Addr) {
	if *addr == Nil {
		return
	}

	*p.Get(*addr).FreeLink() = p.free
	p.free = *addr
	*addr = Nil
	p.live--
	p.freeLen++
}

// Get resolves an address to its element. The result is undefined for
// addresses that are not currently allocated.
func (p *Pool[T, S]) Get(addr Addr) S {
	a := uint32(addr)
	if p.pow2 {
		return S(&p.blocks[a>>p.shift][a&p.mask])
	}

	return S(&p.blocks[a/p.slotsPerBlock][a%p.slotsPerBlock])
}

// Reset releases every block. All previously returned addresses become invalid.
func (p *Pool[T, S]) Reset() {
	p.blocks = nil
	p.carved = 0
	p.free = Nil
	p.live = 0
	p.freeLen = 0
}

// SlotsPerBlock returns the number of elements stored in each block.
func (p *Pool[T, S]) SlotsPerBlock() int {
	return int(p.slotsPerBlock)
}

// Live returns the number of slots currently allocated.
func (p *Pool[T, S]) Live() int {
	return p.live
}

// Stats describes the current shape of a Pool.
type Stats struct {
	BlockSize     int `json:"block_size"      yaml:"block_size"`
	SlotsPerBlock int `json:"slots_per_block" yaml:"slots_per_block"`
	Blocks        int `json:"blocks"          yaml:"blocks"`
	Capacity      int `json:"capacity"        yaml:"capacity"`
	Carved        int `json:"carved"          yaml:"carved"`
	Live          int `json:"live"            yaml:"live"`
	Free          int `json:"free"            yaml:"free"`
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T, S]) Stats() Stats {
	return Stats{
		BlockSize:     p.blockSize,
		SlotsPerBlock: int(p.slotsPerBlock),
		Blocks:        len(p.blocks),
		Capacity:      safeconv.MustUint64ToInt(p.capacity()),
		Carved:        int(p.carved),
		Live:          p.live,
		Free:          p.freeLen,
	}
}

func (p *Pool[T, S]) capacity() uint64 {
	return uint64(len(p.blocks)) * uint64(p.slotsPerBlock)
}
