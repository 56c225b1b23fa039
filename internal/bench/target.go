package bench

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/btree"

	"github.com/Sumatoshi-tech/rbslot/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// ErrUnknownTarget is returned for target names NewTargets does not know.
var ErrUnknownTarget = errors.New("unknown bench target")

// Target names.
const (
	TargetRBSlot  = "rbslot"
	TargetSharded = "sharded"
	TargetBTree   = "btree"
	TargetMap     = "map"
)

// btreeDegree matches the degree google/btree recommends for in-memory use.
const btreeDegree = 32

// TargetNames lists every target NewTargets accepts.
func TargetNames() []string {
	return []string{TargetRBSlot, TargetSharded, TargetBTree, TargetMap}
}

// Target is a container the bench phases run against.
type Target interface {
	Name() string
	Insert(key int64) (bool, error)
	Find(key int64) bool
	Erase(key int64) bool
	Len() int
}

// Checker is implemented by targets able to validate their own invariants.
type Checker interface {
	Check() error
}

// PoolReporter is implemented by targets backed by a slot allocator.
type PoolReporter interface {
	PoolStats() slotpool.Stats
}

// TargetOptions configures the slot-backed targets.
type TargetOptions struct {
	BlockSize int
	MaxNodes  uint32
	Shards    int
}

func (to TargetOptions) treeOptions() []rbtree.Option {
	opts := []rbtree.Option{rbtree.WithBlockSize(to.BlockSize)}
	if to.MaxNodes > 0 {
		opts = append(opts, rbtree.WithMaxNodes(to.MaxNodes))
	}

	return opts
}

// NewTargets builds fresh, empty targets for names, in order.
func NewTargets(names []string, opts TargetOptions) ([]Target, error) {
	targets := make([]Target, 0, len(names))

	for _, name := range names {
		switch name {
		case TargetRBSlot:
			targets = append(targets, &treeTarget{tree: rbtree.NewOrdered[int64, int64](opts.treeOptions()...)})
		case TargetSharded:
			targets = append(targets, &shardedTarget{
				sm: rbtree.NewShardedMap[int64, int64](opts.Shards, cmp.Compare[int64], rbtree.HashInt64, opts.treeOptions()...),
			})
		case TargetBTree:
			targets = append(targets, &btreeTarget{tree: btree.NewOrderedG[int64](btreeDegree)})
		case TargetMap:
			targets = append(targets, &mapTarget{m: map[int64]int64{}})
		default:
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownTarget, name, TargetNames())
		}
	}

	return targets, nil
}

type treeTarget struct {
	tree *rbtree.Tree[int64, int64]
}

func (tt *treeTarget) Name() string { return TargetRBSlot }

func (tt *treeTarget) Insert(key int64) (bool, error) {
	_, inserted, err := tt.tree.Insert(key, key)

	return inserted, err
}

func (tt *treeTarget) Find(key int64) bool { return tt.tree.Has(key) }

func (tt *treeTarget) Erase(key int64) bool { return tt.tree.DeleteWithKey(key) }

func (tt *treeTarget) Len() int { return tt.tree.Len() }

func (tt *treeTarget) Check() error { return tt.tree.Check() }

func (tt *treeTarget) PoolStats() slotpool.Stats { return tt.tree.PoolStats() }

type shardedTarget struct {
	sm *rbtree.ShardedMap[int64, int64]
}

func (st *shardedTarget) Name() string { return TargetSharded }

func (st *shardedTarget) Insert(key int64) (bool, error) { return st.sm.Insert(key, key) }

func (st *shardedTarget) Find(key int64) bool {
	_, ok := st.sm.Get(key)

	return ok
}

func (st *shardedTarget) Erase(key int64) bool { return st.sm.Delete(key) }

func (st *shardedTarget) Len() int { return st.sm.Len() }

func (st *shardedTarget) Check() error { return st.sm.Verify() }

type btreeTarget struct {
	tree *btree.BTreeG[int64]
}

func (bt *btreeTarget) Name() string { return TargetBTree }

func (bt *btreeTarget) Insert(key int64) (bool, error) {
	_, replaced := bt.tree.ReplaceOrInsert(key)

	return !replaced, nil
}

func (bt *btreeTarget) Find(key int64) bool { return bt.tree.Has(key) }

func (bt *btreeTarget) Erase(key int64) bool {
	_, found := bt.tree.Delete(key)

	return found
}

func (bt *btreeTarget) Len() int { return bt.tree.Len() }

// Check confirms the B-tree yields strictly ascending keys.
func (bt *btreeTarget) Check() error {
	keys := make([]int64, 0, bt.tree.Len())
	bt.tree.Ascend(func(key int64) bool {
		keys = append(keys, key)

		return true
	})

	if !slices.IsSorted(keys) || len(slices.Compact(keys)) != bt.tree.Len() {
		return fmt.Errorf("%w: btree keys out of order", rbtree.ErrInvariantViolated)
	}

	return nil
}

type mapTarget struct {
	m map[int64]int64
}

func (mt *mapTarget) Name() string { return TargetMap }

func (mt *mapTarget) Insert(key int64) (bool, error) {
	if _, ok := mt.m[key]; ok {
		return false, nil
	}

	mt.m[key] = key

	return true, nil
}

func (mt *mapTarget) Find(key int64) bool {
	_, ok := mt.m[key]

	return ok
}

func (mt *mapTarget) Erase(key int64) bool {
	if _, ok := mt.m[key]; !ok {
		return false
	}

	delete(mt.m, key)

	return true
}

func (mt *mapTarget) Len() int { return len(mt.m) }
