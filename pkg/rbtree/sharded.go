package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// ErrVerifyShards is returned when at least one shard fails verification.
var ErrVerifyShards = errors.New("shard verification failed")

// Hasher maps a key to a shard selector.
type Hasher[K any] func(key K) uint32

// HashString hashes string keys with FNV-1a.
func HashString(key string) uint32 {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))

	return hasher.Sum32()
}

// HashInt64 hashes integer keys with FNV-1a over their little-endian bytes.
func HashInt64(key int64) uint32 {
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(key))

	hasher := fnv.New32a()
	hasher.Write(buf[:])

	return hasher.Sum32()
}

type shard[K, V any] struct {
	mu   sync.RWMutex
	tree *Tree[K, V]
}

// ShardedMap spreads keys over independent trees, each owning its allocator
// and guarded by its own lock, so that goroutines touching different shards
// do not contend. Ordering holds within a shard only.
type ShardedMap[K, V any] struct {
	shards []*shard[K, V]
	hash   Hasher[K]
}

// NewShardedMap creates a ShardedMap with shardCount trees ordered by compare.
func NewShardedMap[K, V any](shardCount int, compare func(a, b K) int, hash Hasher[K], opts ...Option) *ShardedMap[K, V] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*shard[K, V], shardCount)
	for idx := range shardCount {
		shards[idx] = &shard[K, V]{tree: New[K, V](compare, opts...)}
	}

	return &ShardedMap[K, V]{shards: shards, hash: hash}
}

func (sm *ShardedMap[K, V]) shardFor(key K) *shard[K, V] {
	return sm.shards[sm.hash(key)%uint32(len(sm.shards))] //nolint:gosec // shard count is a small positive int.
}

// ShardCount returns the number of underlying trees.
func (sm *ShardedMap[K, V]) ShardCount() int {
	return len(sm.shards)
}

// Get returns the value stored under key.
func (sm *ShardedMap[K, V]) Get(key K) (V, bool) {
	sh := sm.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return sh.tree.Get(key)
}

// Put stores value under key and returns the replaced item, if any.
func (sm *ShardedMap[K, V]) Put(key K, value V) (Item[K, V], bool, error) {
	sh := sm.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.tree.Put(key, value)
}

// Insert stores value under key only if key is absent.
func (sm *ShardedMap[K, V]) Insert(key K, value V) (bool, error) {
	sh := sm.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, inserted, err := sh.tree.Insert(key, value)

	return inserted, err
}

// Delete removes key and reports whether it was present.
func (sm *ShardedMap[K, V]) Delete(key K) bool {
	sh := sm.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	return sh.tree.DeleteWithKey(key)
}

// Len returns the total number of entries across shards.
func (sm *ShardedMap[K, V]) Len() int {
	total := 0

	for _, sh := range sm.shards {
		sh.mu.RLock()
		total += sh.tree.Len()
		sh.mu.RUnlock()
	}

	return total
}

// Verify checks every shard in parallel.
func (sm *ShardedMap[K, V]) Verify() error {
	var errs []error

	var mu sync.Mutex

	wg := sync.WaitGroup{}
	wg.Add(len(sm.shards))

	for idx, sh := range sm.shards {
		go func(shardIdx int, sh *shard[K, V]) {
			defer wg.Done()

			sh.mu.RLock()
			err := sh.tree.Check()
			sh.mu.RUnlock()

			if err != nil {
				mu.Lock()

				errs = append(errs, fmt.Errorf("shard %d: %w", shardIdx, err))

				mu.Unlock()
			}
		}(idx, sh)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrVerifyShards, errors.Join(errs...))
	}

	return nil
}

// Clear empties all shards in parallel.
func (sm *ShardedMap[K, V]) Clear() {
	wg := sync.WaitGroup{}
	wg.Add(len(sm.shards))

	for _, sh := range sm.shards {
		go func(sh *shard[K, V]) {
			defer wg.Done()

			sh.mu.Lock()
			sh.tree.Clear()
			sh.mu.Unlock()
		}(sh)
	}

	wg.Wait()
}
