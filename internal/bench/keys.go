// Package bench drives workloads against the slot-backed tree and baseline
// containers and renders the measurements.
package bench

import (
	"cmp"
	"math/rand"
	"slices"

	"github.com/Sumatoshi-tech/rbslot/pkg/config"
)

// Keys generates count int64 keys. Sparse keys are uniformly random over
// the whole int64 range and may repeat; dense keys are 0..count-1. Random
// order shuffles dense keys, the other orders sort the result.
func Keys(count int, order string, sparse bool, rng *rand.Rand) []int64 {
	keys := make([]int64, count)

	for idx := range keys {
		if sparse {
			keys[idx] = int64(rng.Uint64()) //nolint:gosec // wrap-around covers negative keys.
		} else {
			keys[idx] = int64(idx)
		}
	}

	switch order {
	case config.OrderAscending:
		slices.Sort(keys)
	case config.OrderDescending:
		slices.SortFunc(keys, func(a, b int64) int { return cmp.Compare(b, a) })
	default:
		if !sparse {
			rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		}
	}

	return keys
}
