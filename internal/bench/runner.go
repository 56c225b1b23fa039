package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rbslot/pkg/observability"
)

// ErrTargetMismatch is returned when a target disagrees with the expected outcome of a phase.
var ErrTargetMismatch = errors.New("target returned an unexpected result")

// Phase names.
const (
	PhaseInsert = "insert"
	PhaseFind   = "find"
	PhaseErase  = "erase"
)

// Options describes one benchmark run.
type Options struct {
	Order   string
	Targets TargetOptions
	Count   int
	Seed    int64
	Sparse  bool
}

// Runner executes workloads and records their telemetry.
type Runner struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.TreeMetrics
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(logger *slog.Logger, tracer trace.Tracer, metrics *observability.TreeMetrics) *Runner {
	return &Runner{logger: logger, tracer: tracer, metrics: metrics}
}

// Run inserts, finds and erases the generated keys in every target, in that
// order, and checks each target against the distinct key count.
func (r *Runner) Run(ctx context.Context, opts Options, targets []Target) (*Report, error) {
	ctx, span := r.tracer.Start(ctx, "bench.run", trace.WithAttributes(
		attribute.Int("bench.count", opts.Count),
		attribute.String("bench.order", opts.Order),
		attribute.Bool("bench.sparse", opts.Sparse),
	))
	defer span.End()

	keys := Keys(opts.Count, opts.Order, opts.Sparse, rand.New(rand.NewSource(opts.Seed))) //nolint:gosec // reproducible workload.

	report := &Report{
		Count:     opts.Count,
		Order:     opts.Order,
		Sparse:    opts.Sparse,
		Seed:      opts.Seed,
		BlockSize: opts.Targets.BlockSize,
	}

	for _, target := range targets {
		result, err := r.runTarget(ctx, target, keys)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return nil, err
		}

		report.Results = append(report.Results, *result)
	}

	return report, nil
}

func (r *Runner) runTarget(ctx context.Context, target Target, keys []int64) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "bench.target", trace.WithAttributes(attribute.String("bench.target", target.Name())))
	defer span.End()

	result := &Result{Target: target.Name()}

	insert, err := r.phase(ctx, target.Name(), PhaseInsert, keys, func(key int64) (bool, error) {
		return target.Insert(key)
	})
	if err != nil {
		return nil, err
	}

	distinct := insert.Hits
	result.Phases = append(result.Phases, *insert)
	result.Len = target.Len()

	if result.Len != distinct {
		return nil, fmt.Errorf("%w: %s holds %d keys after %d distinct inserts", ErrTargetMismatch, target.Name(), result.Len, distinct)
	}

	if pr, ok := target.(PoolReporter); ok {
		stats := pr.PoolStats()
		result.Pool = &stats

		if r.metrics != nil {
			r.metrics.RecordPool(ctx, target.Name(), stats.Blocks, stats.Live)
		}
	}

	verified, err := r.check(ctx, target)
	if err != nil {
		return nil, err
	}

	result.Verified = verified

	find, err := r.phase(ctx, target.Name(), PhaseFind, keys, func(key int64) (bool, error) {
		return target.Find(key), nil
	})
	if err != nil {
		return nil, err
	}

	if find.Hits != len(keys) {
		return nil, fmt.Errorf("%w: %s found %d of %d keys", ErrTargetMismatch, target.Name(), find.Hits, len(keys))
	}

	result.Phases = append(result.Phases, *find)

	erase, err := r.phase(ctx, target.Name(), PhaseErase, keys, func(key int64) (bool, error) {
		return target.Erase(key), nil
	})
	if err != nil {
		return nil, err
	}

	if erase.Hits != distinct || target.Len() != 0 {
		return nil, fmt.Errorf("%w: %s erased %d of %d keys", ErrTargetMismatch, target.Name(), erase.Hits, distinct)
	}

	result.Phases = append(result.Phases, *erase)

	r.logger.InfoContext(ctx, "target finished",
		"target", target.Name(),
		"keys", len(keys),
		"distinct", distinct,
		"verified", verified,
	)

	return result, nil
}

// phase applies op to every key and counts the calls that reported true.
func (r *Runner) phase(
	ctx context.Context, target, name string, keys []int64, op func(int64) (bool, error),
) (*PhaseResult, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", target, name, err)
	}

	ctx, span := r.tracer.Start(ctx, "bench.phase."+name)
	defer span.End()

	hits := 0
	start := time.Now()

	for _, key := range keys {
		ok, opErr := op(key)
		if opErr != nil {
			span.RecordError(opErr)

			return nil, fmt.Errorf("%s %s key %d: %w", target, name, key, opErr)
		}

		if ok {
			hits++
		}
	}

	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordPhase(ctx, target, name, len(keys), elapsed)
	}

	r.logger.DebugContext(ctx, "phase finished", "target", target, "phase", name, "elapsed", elapsed)

	return newPhaseResult(name, len(keys), hits, elapsed), nil
}

// check runs the target's own invariant check, if it has one. A nil result
// means the target cannot be checked.
func (r *Runner) check(ctx context.Context, target Target) (*bool, error) {
	checker, ok := target.(Checker)
	if !ok {
		return nil, nil //nolint:nilnil // unverifiable targets have no verdict.
	}

	start := time.Now()
	err := checker.Check()
	valid := err == nil

	if r.metrics != nil {
		r.metrics.RecordVerify(ctx, target.Name(), valid, time.Since(start))
	}

	if err != nil {
		return &valid, fmt.Errorf("%s: %w", target.Name(), err)
	}

	return &valid, nil
}
