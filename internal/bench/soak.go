package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"math/rand"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rbslot/pkg/config"
	"github.com/Sumatoshi-tech/rbslot/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// ErrOracleMismatch is returned when the tree disagrees with the reference map.
var ErrOracleMismatch = errors.New("tree diverged from oracle")

// Soak operation kinds, drawn uniformly.
const (
	soakInsert = iota
	soakPut
	soakErase
	soakFind
	soakKinds
)

// SoakOptions describes a randomized soak run.
type SoakOptions struct {
	Ops         int
	Keys        int
	VerifyEvery int
	Seed        int64
	BlockSize   int
	MaxNodes    uint32
}

// SoakResult summarizes a soak run.
type SoakResult struct {
	Pool     slotpool.Stats `json:"pool"      yaml:"pool"`
	Ops      int            `json:"ops"       yaml:"ops"`
	Inserts  int            `json:"inserts"   yaml:"inserts"`
	Puts     int            `json:"puts"      yaml:"puts"`
	Erases   int            `json:"erases"    yaml:"erases"`
	Finds    int            `json:"finds"     yaml:"finds"`
	Checks   int            `json:"checks"    yaml:"checks"`
	FinalLen int            `json:"final_len" yaml:"final_len"`
	MaxLen   int            `json:"max_len"   yaml:"max_len"`
	Height   int            `json:"height"    yaml:"height"`
	Seconds  float64        `json:"seconds"   yaml:"seconds"`
}

// Soak applies random inserts, puts, erases and lookups to a tree and a
// reference map, failing on the first disagreement or invariant violation.
func (r *Runner) Soak(ctx context.Context, opts SoakOptions) (*SoakResult, error) {
	if opts.Ops <= 0 || opts.Keys <= 0 || opts.VerifyEvery <= 0 {
		return nil, fmt.Errorf("%w: ops=%d keys=%d verify_every=%d",
			config.ErrInvalidSoak, opts.Ops, opts.Keys, opts.VerifyEvery)
	}

	ctx, span := r.tracer.Start(ctx, "bench.soak", trace.WithAttributes(
		attribute.Int("soak.ops", opts.Ops),
		attribute.Int("soak.keys", opts.Keys),
	))
	defer span.End()

	result, err := r.soak(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	return result, nil
}

func (r *Runner) soak(ctx context.Context, opts SoakOptions) (*SoakResult, error) {
	treeOpts := TargetOptions{BlockSize: opts.BlockSize, MaxNodes: opts.MaxNodes}.treeOptions()
	tree := rbtree.NewOrdered[int64, int64](treeOpts...)
	oracle := make(map[int64]int64, opts.Keys)
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // reproducible workload.
	result := &SoakResult{}
	start := time.Now()

	for op := range opts.Ops {
		if op%opts.VerifyEvery == 0 {
			err := ctx.Err()
			if err != nil {
				return nil, fmt.Errorf("soak op %d: %w", op, err)
			}
		}

		key := rng.Int63n(int64(opts.Keys))
		value := rng.Int63()

		err := soakStep(tree, oracle, rng.Intn(soakKinds), key, value, result)
		if err != nil {
			return nil, fmt.Errorf("soak op %d key %d: %w", op, key, err)
		}

		result.Ops++
		result.MaxLen = max(result.MaxLen, tree.Len())

		if (op+1)%opts.VerifyEvery == 0 {
			err = r.soakCheck(ctx, tree)
			if err != nil {
				return nil, fmt.Errorf("soak op %d: %w", op, err)
			}

			result.Checks++
		}
	}

	err := r.soakCheck(ctx, tree)
	if err != nil {
		return nil, err
	}

	result.Checks++

	err = compareOrdered(tree, oracle)
	if err != nil {
		return nil, err
	}

	result.Seconds = time.Since(start).Seconds()
	result.FinalLen = tree.Len()
	result.Height = tree.Height()
	result.Pool = tree.PoolStats()

	if r.metrics != nil {
		r.metrics.RecordPhase(ctx, TargetRBSlot, "soak", result.Ops, time.Since(start))
		r.metrics.RecordPool(ctx, TargetRBSlot, result.Pool.Blocks, result.Pool.Live)
	}

	r.logger.InfoContext(ctx, "soak finished",
		"ops", result.Ops,
		"final_len", result.FinalLen,
		"height", result.Height,
		"checks", result.Checks,
	)

	return result, nil
}

func soakStep(
	tree *rbtree.Tree[int64, int64], oracle map[int64]int64, kind int, key, value int64, result *SoakResult,
) error {
	_, present := oracle[key]

	switch kind {
	case soakInsert:
		result.Inserts++

		_, inserted, err := tree.Insert(key, value)
		if err != nil {
			return err
		}

		if inserted == present {
			return fmt.Errorf("%w: insert reported %t with key present=%t", ErrOracleMismatch, inserted, present)
		}

		if inserted {
			oracle[key] = value
		}
	case soakPut:
		result.Puts++

		old, replaced, err := tree.Put(key, value)
		if err != nil {
			return err
		}

		if replaced != present || (replaced && old.Value != oracle[key]) {
			return fmt.Errorf("%w: put replaced=%t old=%d, want present=%t old=%d",
				ErrOracleMismatch, replaced, old.Value, present, oracle[key])
		}

		oracle[key] = value
	case soakErase:
		result.Erases++

		if tree.DeleteWithKey(key) != present {
			return fmt.Errorf("%w: erase disagrees, key present=%t", ErrOracleMismatch, present)
		}

		delete(oracle, key)
	default:
		result.Finds++

		got, found := tree.Get(key)
		if found != present || got != oracle[key] {
			return fmt.Errorf("%w: get=(%d, %t), want (%d, %t)", ErrOracleMismatch, got, found, oracle[key], present)
		}
	}

	if tree.Len() != len(oracle) {
		return fmt.Errorf("%w: len %d, want %d", ErrOracleMismatch, tree.Len(), len(oracle))
	}

	return nil
}

func (r *Runner) soakCheck(ctx context.Context, tree *rbtree.Tree[int64, int64]) error {
	start := time.Now()
	err := tree.Check()

	if r.metrics != nil {
		r.metrics.RecordVerify(ctx, TargetRBSlot, err == nil, time.Since(start))
	}

	return err
}

// compareOrdered walks the tree in order and matches it against the sorted oracle.
func compareOrdered(tree *rbtree.Tree[int64, int64], oracle map[int64]int64) error {
	want := slices.Sorted(maps.Keys(oracle))
	idx := 0

	for key, value := range tree.All() {
		if idx >= len(want) || key != want[idx] || value != oracle[key] {
			return fmt.Errorf("%w: in-order position %d holds %d=%d", ErrOracleMismatch, idx, key, value)
		}

		idx++
	}

	if idx != len(want) {
		return fmt.Errorf("%w: walked %d keys, want %d", ErrOracleMismatch, idx, len(want))
	}

	return nil
}

// WriteSoakText renders a soak summary.
func WriteSoakText(w io.Writer, result *SoakResult) error {
	_, err := fmt.Fprintf(w,
		"%s ops in %.2fs (%s inserts, %s puts, %s erases, %s finds)\n"+
			"final size %s, peak %s, height %d, %d checks\n"+
			"pool: %d blocks, %s slots carved, %s free\n",
		humanize.Comma(int64(result.Ops)), result.Seconds,
		humanize.Comma(int64(result.Inserts)), humanize.Comma(int64(result.Puts)),
		humanize.Comma(int64(result.Erases)), humanize.Comma(int64(result.Finds)),
		humanize.Comma(int64(result.FinalLen)), humanize.Comma(int64(result.MaxLen)),
		result.Height, result.Checks,
		result.Pool.Blocks, humanize.Comma(int64(result.Pool.Carved)), humanize.Comma(int64(result.Pool.Free)),
	)
	if err != nil {
		return fmt.Errorf("write soak summary: %w", err)
	}

	color.New(color.FgGreen).Fprintln(w, "invariants hold")

	return nil
}
