package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOpsTotal        = "rbslot.ops.total"
	metricPhaseDuration   = "rbslot.phase.duration.seconds"
	metricPoolBlocks      = "rbslot.pool.blocks"
	metricLiveNodes       = "rbslot.pool.live.nodes"
	metricVerifyFailures  = "rbslot.verify.failures.total"
	metricVerifyDurations = "rbslot.verify.duration.seconds"

	attrTarget = "target"
	attrPhase  = "phase"
)

// durationBucketBoundaries covers 1ms to 120s, the range of a single
// benchmark phase from a few thousand keys to tens of millions.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// TreeMetrics holds the OTel instruments recorded by the bench and soak drivers.
type TreeMetrics struct {
	opsTotal       metric.Int64Counter
	phaseDuration  metric.Float64Histogram
	poolBlocks     metric.Int64Gauge
	liveNodes      metric.Int64Gauge
	verifyFailures metric.Int64Counter
	verifyDuration metric.Float64Histogram
}

// NewTreeMetrics creates tree metric instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Container operations executed"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	phaseDuration, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Wall time of a benchmark phase"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	poolBlocks, err := mt.Int64Gauge(metricPoolBlocks,
		metric.WithDescription("Node blocks held by the slot allocator"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPoolBlocks, err)
	}

	liveNodes, err := mt.Int64Gauge(metricLiveNodes,
		metric.WithDescription("Allocated tree nodes"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLiveNodes, err)
	}

	verifyFailures, err := mt.Int64Counter(metricVerifyFailures,
		metric.WithDescription("Invariant checks that failed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricVerifyFailures, err)
	}

	verifyDuration, err := mt.Float64Histogram(metricVerifyDurations,
		metric.WithDescription("Wall time of a full invariant check"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricVerifyDurations, err)
	}

	return &TreeMetrics{
		opsTotal:       opsTotal,
		phaseDuration:  phaseDuration,
		poolBlocks:     poolBlocks,
		liveNodes:      liveNodes,
		verifyFailures: verifyFailures,
		verifyDuration: verifyDuration,
	}, nil
}

// RecordPhase records ops operations of one phase executed against target.
func (tm *TreeMetrics) RecordPhase(ctx context.Context, target, phase string, ops int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrTarget, target),
		attribute.String(attrPhase, phase),
	)

	tm.opsTotal.Add(ctx, int64(ops), attrs)
	tm.phaseDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPool records the allocator footprint of target.
func (tm *TreeMetrics) RecordPool(ctx context.Context, target string, blocks, live int) {
	attrs := metric.WithAttributes(attribute.String(attrTarget, target))

	tm.poolBlocks.Record(ctx, int64(blocks), attrs)
	tm.liveNodes.Record(ctx, int64(live), attrs)
}

// RecordVerify records the outcome of an invariant check.
func (tm *TreeMetrics) RecordVerify(ctx context.Context, target string, ok bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrTarget, target))

	tm.verifyDuration.Record(ctx, duration.Seconds(), attrs)

	if !ok {
		tm.verifyFailures.Add(ctx, 1, attrs)
	}
}
