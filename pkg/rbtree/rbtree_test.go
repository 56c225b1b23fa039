package rbtree //nolint:testpackage // tests require access to unexported fields (node addresses, colors, stack).

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// Create a tree storing a set of integers.
func testNewIntSet(opts ...Option) *Tree[int, int] {
	return NewOrdered[int, int](opts...)
}

func testAssert(tb testing.TB, condition bool, message string) {
	tb.Helper()
	assert.True(tb, condition, message)
}

func boolInsert(tb testing.TB, tree *Tree[int, int], item int) bool {
	tb.Helper()

	_, inserted, err := tree.Insert(item, item)
	require.NoError(tb, err)

	return inserted
}

func requireValid(tb testing.TB, tree *Tree[int, int]) {
	tb.Helper()
	require.NoError(tb, tree.Check())
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, tree.Len() == 0, "len!=0")
	testAssert(t, tree.Empty(), "empty")
	testAssert(t, tree.Max().NegativeLimit(), "neglimit")
	testAssert(t, tree.Min().Limit(), "limit")
	testAssert(t, tree.FindGE(10).Limit(), "Not empty")
	testAssert(t, tree.FindLE(10).NegativeLimit(), "Not empty")
	testAssert(t, tree.Find(10).Limit(), "Not empty")
	testAssert(t, tree.Limit().Equal(tree.Min()), "iter")
	testAssert(t, !tree.Limit().Equal(tree.NegativeLimit()), "limits")
	testAssert(t, tree.Verify(), "verify")
	assert.Equal(t, 0, tree.Height())

	_, found := tree.Get(10)
	testAssert(t, !found, "Not empty")
}

func TestFindGE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(t, tree, 10), "Insert1")
	testAssert(t, !boolInsert(t, tree, 10), "Insert2")
	testAssert(t, tree.Len() == 1, "len==1")
	testAssert(t, tree.FindGE(10).Item().Key == 10, "FindGE 10")
	testAssert(t, tree.FindGE(11).Limit(), "FindGE 11")
	assert.Equal(t, 10, tree.FindGE(9).Item().Key, "FindGE 10")
}

func TestFindLE(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(t, tree, 10), "insert1")
	testAssert(t, tree.FindLE(10).Item().Key == 10, "FindLE 10")
	testAssert(t, tree.FindLE(11).Item().Key == 10, "FindLE 11")
	testAssert(t, tree.FindLE(9).NegativeLimit(), "FindLE 9")
}

func TestGet(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, boolInsert(t, tree, 10), "insert1")

	value, found := tree.Get(10)
	require.True(t, found)
	assert.Equal(t, 10, value, "Get 10")

	testAssert(t, !tree.Has(9), "Get 9")
	testAssert(t, !tree.Has(11), "Get 11")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	testAssert(t, !tree.DeleteWithKey(10), "del")
	testAssert(t, tree.Len() == 0, "dellen")
	testAssert(t, boolInsert(t, tree, 10), "ins")
	testAssert(t, tree.DeleteWithKey(10), "del")
	testAssert(t, tree.Len() == 0, "dellen")

	testAssert(t, boolInsert(t, tree, 10), "ins")
	testAssert(t, !tree.DeleteWithKey(9), "del")
	testAssert(t, tree.Len() == 1, "dellen")
	assert.Equal(t, 1, tree.Erase(10))
	assert.Equal(t, 0, tree.Erase(10))
	testAssert(t, tree.Empty(), "empty")
}

func TestInsertDuplicateKeepsOriginal(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	first, inserted, err := tree.Insert(7, 70)
	require.NoError(t, err)
	require.True(t, inserted)

	second, inserted, err := tree.Insert(7, 71)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.True(t, first.Equal(second))
	assert.Equal(t, 70, second.Item().Value)
	assert.Equal(t, 1, tree.Len())
}

func TestPutOverwritesInPlace(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 64 {
		boolInsert(t, tree, key)
	}

	addr := tree.Find(33).node

	old, replaced, err := tree.Put(33, 3300)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, Item[int, int]{Key: 33, Value: 33}, old)
	assert.Equal(t, addr, tree.Find(33).node)
	assert.Equal(t, 64, tree.Len())

	value, _ := tree.Get(33)
	assert.Equal(t, 3300, value)

	_, replaced, err = tree.Put(100, 1)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, 65, tree.Len())
	requireValid(t, tree)
}

func iterToString(it Iterator[int, int]) string {
	result := ""

	for ; !it.Limit(); it = it.Next() {
		if result != "" {
			result += ","
		}

		result += strconv.Itoa(it.Item().Key)
	}

	return result
}

func reverseIterToString(it Iterator[int, int]) string {
	result := ""

	for ; !it.NegativeLimit(); it = it.Prev() {
		if result != "" {
			result += ","
		}

		result += strconv.Itoa(it.Item().Key)
	}

	return result
}

func TestIterator(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for idx := 0; idx < 10; idx += 2 {
		boolInsert(t, tree, idx)
	}

	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(3)))
	assert.Equal(t, "4,6,8", iterToString(tree.FindGE(4)))
	assert.Equal(t, "8", iterToString(tree.FindGE(8)))
	assert.Empty(t, iterToString(tree.FindGE(9)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(3)))
	assert.Equal(t, "2,0", reverseIterToString(tree.FindLE(2)))
	assert.Equal(t, "0", reverseIterToString(tree.FindLE(0)))
	assert.Equal(t, "0,2,4,6,8", iterToString(tree.NegativeLimit().Next()))
	assert.Equal(t, "8,6,4,2,0", reverseIterToString(tree.Limit().Prev()))
}

func TestLocate(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	it, diff := tree.Locate(5)
	assert.True(t, it.Limit())
	assert.Equal(t, 0, diff)

	for _, key := range []int{10, 20, 30} {
		boolInsert(t, tree, key)
	}

	it, diff = tree.Locate(20)
	assert.Equal(t, 0, diff)
	assert.Equal(t, 20, it.Item().Key)

	it, diff = tree.Locate(25)
	require.NotZero(t, diff)

	// The landing node is an in-order neighbour of the missing key.
	if diff < 0 {
		assert.Equal(t, 30, it.Item().Key)
	} else {
		assert.Equal(t, 20, it.Item().Key)
	}

	it, diff = tree.Locate(1)
	assert.Negative(t, diff)
	assert.Equal(t, 10, it.Item().Key)
	assert.True(t, it.Prev().NegativeLimit())
}

func TestIteratorSurvivesUnrelatedMutations(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := 0; key < 200; key += 2 {
		boolInsert(t, tree, key)
	}

	it := tree.Find(100)
	require.False(t, it.Limit())

	// Reshape the tree around the iterator's node.
	for key := 1; key < 200; key += 2 {
		boolInsert(t, tree, key)
	}

	for key := 0; key < 90; key += 2 {
		tree.DeleteWithKey(key)
	}

	assert.Equal(t, 101, it.Next().Item().Key)
	assert.Equal(t, 99, it.Prev().Item().Key)
	requireValid(t, tree)
}

func TestInsertedIteratorWalks(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 100 {
		if key == 42 {
			continue
		}

		boolInsert(t, tree, key)
	}

	it, inserted, err := tree.Insert(42, 42)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, 43, it.Next().Item().Key)
	assert.Equal(t, 41, it.Prev().Item().Key)
}

func TestDeleteWithIterator(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 500 {
		boolInsert(t, tree, key)
	}

	for it := tree.Min(); !it.Limit(); {
		next := it.Next()
		if it.Item().Key%2 == 0 {
			tree.DeleteWithIterator(it)
		}

		it = next
	}

	requireValid(t, tree)
	assert.Equal(t, 250, tree.Len())

	want := 1
	for key := range tree.All() {
		assert.Equal(t, want, key)

		want += 2
	}
}

func TestSuccessorSpliceKeepsAddresses(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 1000 {
		boolInsert(t, tree, key)
	}

	rootKey := tree.node(tree.root).item.Key
	succ := tree.Find(rootKey).Next()
	succAddr := succ.node

	// The root of a 1000-node tree has two children.
	require.True(t, tree.DeleteWithKey(rootKey))
	requireValid(t, tree)

	it := tree.Find(succ.Item().Key)
	assert.Equal(t, succAddr, it.node)
}

func TestFreedAddressIsReused(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 100 {
		boolInsert(t, tree, key)
	}

	freed := tree.Find(57).node
	require.True(t, tree.DeleteWithKey(57))

	it, inserted, err := tree.Insert(1000, 1000)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, freed, tree.Find(1000).node)
	assert.Equal(t, 1000, it.Item().Key)
	assert.Equal(t, 100, tree.PoolStats().Live)
}

func TestCapacityExhaustedLeavesTreeUnchanged(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet(WithMaxNodes(3))

	for key := range 3 {
		boolInsert(t, tree, key)
	}

	it, inserted, err := tree.Insert(3, 3)
	require.ErrorIs(t, err, slotpool.ErrCapacityExhausted)
	assert.False(t, inserted)
	assert.True(t, it.Limit())

	_, _, err = tree.Put(4, 4)
	require.ErrorIs(t, err, slotpool.ErrCapacityExhausted)

	assert.Equal(t, 3, tree.Len())
	assert.False(t, tree.Has(3))
	requireValid(t, tree)

	// Overwrites need no allocation.
	_, replaced, err := tree.Put(1, 10)
	require.NoError(t, err)
	assert.True(t, replaced)

	require.True(t, tree.DeleteWithKey(0))
	assert.True(t, boolInsert(t, tree, 3))
	requireValid(t, tree)
}

func TestCustomComparator(t *testing.T) {
	t.Parallel()

	tree := New[string, int](func(a, b string) int { return cmp.Compare(b, a) })

	for idx, key := range []string{"b", "d", "a", "c"} {
		_, _, err := tree.Insert(key, idx)
		require.NoError(t, err)
	}

	var keys []string
	for key := range tree.All() {
		keys = append(keys, key)
	}

	assert.Equal(t, []string{"d", "c", "b", "a"}, keys)
	assert.True(t, tree.Verify())
}

func TestRangeFunctions(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 10 {
		boolInsert(t, tree, key*10)
	}

	var backward []int
	for key := range tree.Backward() {
		backward = append(backward, key)
	}

	assert.Equal(t, []int{90, 80, 70, 60, 50, 40, 30, 20, 10, 0}, backward)

	var ascend []int
	for key, value := range tree.Ascend(35) {
		assert.Equal(t, key, value)

		ascend = append(ascend, key)
		if len(ascend) == 3 {
			break
		}
	}

	assert.Equal(t, []int{40, 50, 60}, ascend)

	var descend []int
	for key := range tree.Descend(35) {
		descend = append(descend, key)
	}

	assert.Equal(t, []int{30, 20, 10, 0}, descend)

	count := 0
	for range tree.All() {
		count++
		if count == 4 {
			break
		}
	}

	assert.Equal(t, 4, count)
}

func TestClone(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 300 {
		boolInsert(t, tree, key)
	}

	clone := tree.Clone()
	requireValid(t, clone)
	assert.Equal(t, tree.Len(), clone.Len())
	assert.Equal(t, tree.Height(), clone.Height())
	assert.Equal(t, slices.Collect(keysOf(tree)), slices.Collect(keysOf(clone)))

	clone.DeleteWithKey(5)
	assert.True(t, tree.Has(5))
	assert.Equal(t, 300, tree.Len())
}

func TestClear(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	for key := range 300 {
		boolInsert(t, tree, key)
	}

	tree.Clear()
	assert.True(t, tree.Empty())
	assert.True(t, tree.Min().Limit())
	assert.Equal(t, 0, tree.PoolStats().Blocks)
	requireValid(t, tree)

	assert.True(t, boolInsert(t, tree, 1))
	requireValid(t, tree)
}

func TestCheckDetectsCorruption(t *testing.T) {
	t.Parallel()

	t.Run("red_root", func(t *testing.T) {
		t.Parallel()

		tree := testNewIntSet()
		boolInsert(t, tree, 1)
		tree.node(tree.root).color = red

		require.ErrorIs(t, tree.Check(), ErrInvariantViolated)
	})

	t.Run("red_red", func(t *testing.T) {
		t.Parallel()

		tree := testNewIntSet()
		for key := range 4 {
			boolInsert(t, tree, key)
		}

		// 1 is the black root, 3 hangs red below the black 2.
		tree.node(tree.Find(2).node).color = red

		err := tree.Check()
		require.ErrorIs(t, err, ErrInvariantViolated)
		assert.Contains(t, err.Error(), "red child")
	})

	t.Run("unordered", func(t *testing.T) {
		t.Parallel()

		tree := testNewIntSet()
		for key := range 3 {
			boolInsert(t, tree, key)
		}

		root := tree.node(tree.root)
		tree.node(root.left).item.Key = 5

		require.ErrorIs(t, tree.Check(), ErrInvariantViolated)
	})

	t.Run("count", func(t *testing.T) {
		t.Parallel()

		tree := testNewIntSet()
		boolInsert(t, tree, 1)
		tree.count = 2

		require.ErrorIs(t, tree.Check(), ErrInvariantViolated)
	})
}

func TestStackOverflowPanics(t *testing.T) {
	t.Parallel()

	var st stack
	for range maxDepth {
		st.push(0)
	}

	assert.PanicsWithValue(t, "rbtree internal assertion failed", func() {
		st.push(0)
	})
}

func TestNextAtLimitPanics(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()

	assert.Panics(t, func() { tree.Limit().Next() })
	assert.Panics(t, func() { tree.NegativeLimit().Prev() })
}

func keysOf(tree *Tree[int, int]) func(func(int) bool) {
	return func(yield func(int) bool) {
		for key := range tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Scenario tests.

func TestMillionRandomKeys(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping 1M-key scenario in short mode")
	}

	const count = 1_000_000

	rng := rand.New(rand.NewSource(1))
	tree := NewOrdered[int64, struct{}]()
	keys := make([]int64, count)
	seen := make(map[int64]bool, count)

	for idx := range keys {
		key := int64(rng.Uint64()) //nolint:gosec // wrap-around is the point.
		keys[idx] = key

		_, inserted, err := tree.Insert(key, struct{}{})
		require.NoError(t, err)
		require.Equal(t, !seen[key], inserted)

		seen[key] = true
	}

	for _, key := range keys {
		require.True(t, tree.Has(key))
	}

	assert.Equal(t, len(seen), tree.Len())
	require.NoError(t, tree.Check())
}

func TestEraseAll(t *testing.T) {
	t.Parallel()

	const count = 20000

	rng := rand.New(rand.NewSource(2))
	tree := testNewIntSet()
	keys := rng.Perm(count)

	for _, key := range keys {
		boolInsert(t, tree, key)
	}

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for idx, key := range keys {
		require.True(t, tree.DeleteWithKey(key), "erase %d", key)

		if idx%997 == 0 {
			requireValid(t, tree)
		}
	}

	assert.True(t, tree.Empty())
	assert.Equal(t, 0, tree.PoolStats().Live)
	requireValid(t, tree)
}

func TestAscendingHeightBound(t *testing.T) {
	t.Parallel()

	t.Run("verify_each_insert", func(t *testing.T) {
		t.Parallel()

		tree := testNewIntSet()

		for key := range 4096 {
			boolInsert(t, tree, key)
			requireValid(t, tree)
			require.LessOrEqual(t, float64(tree.Height()), 2*math.Log2(float64(tree.Len()+1)))
		}
	})

	t.Run("large", func(t *testing.T) {
		t.Parallel()

		const count = 200_000

		tree := testNewIntSet()

		for key := range count {
			boolInsert(t, tree, key)

			if key%10_000 == 0 {
				require.LessOrEqual(t, float64(tree.Height()), 2*math.Log2(float64(tree.Len()+1)))
			}
		}

		requireValid(t, tree)
		assert.LessOrEqual(t, float64(tree.Height()), 2*math.Log2(count+1))
	})
}

// Randomized tests.

// oracle provides an interface similar to rbtree, but stores
// data in a sorted slice.
type oracle struct {
	data []int
}

func (o *oracle) Len() int {
	return len(o.data)
}

func (o *oracle) Insert(key int) bool {
	idx, found := slices.BinarySearch(o.data, key)
	if found {
		return false
	}

	o.data = slices.Insert(o.data, idx, key)

	return true
}

func (o *oracle) Delete(key int) bool {
	idx, found := slices.BinarySearch(o.data, key)
	if !found {
		return false
	}

	o.data = slices.Delete(o.data, idx, idx+1)

	return true
}

func (o *oracle) RandomExistingKey(rng *rand.Rand) int {
	return o.data[rng.Intn(len(o.data))]
}

func (o *oracle) FindGE(key int) oracleIterator {
	idx, _ := slices.BinarySearch(o.data, key)

	return oracleIterator{o: o, index: idx}
}

func (o *oracle) FindLE(key int) oracleIterator {
	idx, found := slices.BinarySearch(o.data, key)
	if found {
		return oracleIterator{o: o, index: idx}
	}

	return oracleIterator{o: o, index: idx - 1}
}

type oracleIterator struct {
	o     *oracle
	index int
}

func (oiter oracleIterator) Limit() bool {
	return oiter.index >= len(oiter.o.data)
}

func (oiter oracleIterator) NegativeLimit() bool {
	return oiter.index < 0
}

func (oiter oracleIterator) Item() int {
	return oiter.o.data[oiter.index]
}

func (oiter oracleIterator) Next() oracleIterator {
	return oracleIterator{oiter.o, oiter.index + 1}
}

func (oiter oracleIterator) Prev() oracleIterator {
	return oracleIterator{oiter.o, oiter.index - 1}
}

func compareContents(tb testing.TB, oiter oracleIterator, titer Iterator[int, int]) {
	tb.Helper()

	oi := oiter
	ti := titer

	// Test forward iteration.
	testAssert(tb, oi.NegativeLimit() == ti.NegativeLimit(), "rend")

	if oi.NegativeLimit() {
		oi = oi.Next()
		ti = ti.Next()
	}

	for !oi.Limit() && !ti.Limit() {
		if ti.Item().Key != oi.Item() {
			tb.Fatal("Wrong item", ti.Item(), oi.Item())
		}

		oi = oi.Next()
		ti = ti.Next()
	}

	if !ti.Limit() {
		tb.Fatal("!ti.done", ti.Item())
	}

	if !oi.Limit() {
		tb.Fatal("!oi.done", oi.Item())
	}

	// Test reverse iteration.
	oi = oiter
	ti = titer

	testAssert(tb, oi.Limit() == ti.Limit(), "end")

	if oi.Limit() {
		oi = oi.Prev()
		ti = ti.Prev()
	}

	for !oi.NegativeLimit() && !ti.NegativeLimit() {
		if ti.Item().Key != oi.Item() {
			tb.Fatal("Wrong item", ti.Item(), oi.Item())
		}

		oi = oi.Prev()
		ti = ti.Prev()
	}

	if !ti.NegativeLimit() {
		tb.Fatal("!ti.done", ti.Item())
	}

	if !oi.NegativeLimit() {
		tb.Fatal("!oi.done", oi.Item())
	}
}

func compareContentsFull(tb testing.TB, orc *oracle, tree *Tree[int, int]) {
	tb.Helper()
	compareContents(tb, orc.FindGE(-1), tree.FindGE(-1))
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 1000

	orc := &oracle{}
	tree := testNewIntSet(WithBlockSize(256))
	rng := rand.New(rand.NewSource(0))

	for range 10000 {
		op := rng.Intn(100)

		switch {
		case op < 45:
			key := rng.Intn(numKeys)
			assert.Equal(t, orc.Insert(key), boolInsert(t, tree, key))
			compareContentsFull(t, orc, tree)
		case op < 50:
			key := rng.Intn(numKeys)
			_, replaced, err := tree.Put(key, -key)
			require.NoError(t, err)
			assert.Equal(t, !orc.Insert(key), replaced)
		case op < 90 && orc.Len() > 0:
			key := orc.RandomExistingKey(rng)
			orc.Delete(key)

			if !tree.DeleteWithKey(key) {
				t.Fatal("DeleteExisting", key)
			}

			compareContentsFull(t, orc, tree)
		case op < 95:
			key := rng.Intn(numKeys)
			compareContents(t, orc.FindGE(key), tree.FindGE(key))
		default:
			key := rng.Intn(numKeys)
			compareContents(t, orc.FindLE(key), tree.FindLE(key))
		}

		requireValid(t, tree)
		require.Equal(t, orc.Len(), tree.Len())
	}
}
