package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbslot/internal/bench"
	"github.com/Sumatoshi-tech/rbslot/pkg/config"
	"github.com/Sumatoshi-tech/rbslot/pkg/observability"
)

// BenchCommand holds the flag values of the bench command.
type BenchCommand struct {
	order       string
	format      string
	output      string
	blockSize   string
	metricsAddr string
	targets     []string
	count       int
	shards      int
	seed        int64
	maxNodes    uint32
	sparse      bool
}

// NewBenchCommand creates the bench command.
func NewBenchCommand() *cobra.Command {
	bc := &BenchCommand{}

	cobraCmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert, find and erase keys across the tree and baseline containers",
		Long: `Generate keys, then insert, look up and erase every key in each target,
checking sizes after every phase and tree invariants after the inserts.

Targets: ` + strings.Join(bench.TargetNames(), ", "),
		Args: cobra.NoArgs,
		RunE: bc.run,
	}

	flags := cobraCmd.Flags()
	flags.IntVarP(&bc.count, "count", "n", config.DefaultBenchCount, "Number of keys to generate")
	flags.StringVar(&bc.order, "order", config.DefaultBenchOrder, "Key order: random, ascending, or descending")
	flags.BoolVar(&bc.sparse, "sparse", config.DefaultBenchSparse, "Draw keys from the whole int64 range instead of 0..count-1")
	flags.Int64Var(&bc.seed, "seed", config.DefaultBenchSeed, "Random seed for key generation")
	flags.StringSliceVarP(&bc.targets, "targets", "t", config.DefaultBenchTargets, "Targets to run (comma-separated)")
	flags.IntVar(&bc.shards, "shards", config.DefaultBenchShards, "Shard count of the sharded target")
	flags.StringVarP(&bc.format, "format", "f", config.DefaultBenchFormat, "Output format: text, json, yaml, or html")
	flags.StringVarP(&bc.output, "output", "o", "", "Output file (default: stdout)")
	flags.StringVar(&bc.blockSize, "block-size", config.DefaultBlockSize, "Allocator block size (e.g., '4KiB', '64KiB')")
	flags.Uint32Var(&bc.maxNodes, "max-nodes", config.DefaultMaxNodes, "Cap on live nodes per tree (0 = address space)")
	flags.StringVar(&bc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cobraCmd
}

func (bc *BenchCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("count") {
		cfg.Bench.Count = bc.count
	}

	if flags.Changed("order") {
		cfg.Bench.Order = bc.order
	}

	if flags.Changed("sparse") {
		cfg.Bench.Sparse = bc.sparse
	}

	if flags.Changed("seed") {
		cfg.Bench.Seed = bc.seed
	}

	if flags.Changed("targets") {
		cfg.Bench.Targets = bc.targets
	}

	if flags.Changed("shards") {
		cfg.Bench.Shards = bc.shards
	}

	if flags.Changed("format") {
		cfg.Bench.Format = bc.format
	}

	if flags.Changed("output") {
		cfg.Bench.Output = bc.output
	}

	if flags.Changed("block-size") {
		cfg.Pool.BlockSize = bc.blockSize
	}

	if flags.Changed("max-nodes") {
		cfg.Pool.MaxNodes = bc.maxNodes
	}

	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = bc.metricsAddr
	}
}

func (bc *BenchCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return err
	}

	blockSize, err := cfg.Pool.BlockSizeBytes()
	if err != nil {
		return err
	}

	targetOpts := bench.TargetOptions{BlockSize: blockSize, MaxNodes: cfg.Pool.MaxNodes, Shards: cfg.Bench.Shards}

	targets, err := bench.NewTargets(cfg.Bench.Targets, targetOpts)
	if err != nil {
		return err
	}

	tel, err := startTelemetry(cmd, cfg, observability.ModeBench)
	if err != nil {
		return err
	}

	defer tel.close(context.WithoutCancel(cmd.Context()))

	ctx := cmd.Context()

	if cfg.Bench.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Bench.Timeout)
		defer cancel()
	}

	runner := bench.NewRunner(tel.providers.Logger, tel.providers.Tracer, tel.metrics)

	report, err := runner.Run(ctx, bench.Options{
		Order:   cfg.Bench.Order,
		Targets: targetOpts,
		Count:   cfg.Bench.Count,
		Seed:    cfg.Bench.Seed,
		Sparse:  cfg.Bench.Sparse,
	}, targets)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), cfg.Bench.Output, func(w io.Writer) error {
		return bench.Write(w, cfg.Bench.Format, report)
	})
}

// writeOutput renders into path, or into stdout when path is empty.
func writeOutput(stdout io.Writer, path string, render func(io.Writer) error) error {
	if path == "" {
		return render(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	renderErr := render(file)
	closeErr := file.Close()

	if renderErr != nil {
		return renderErr
	}

	if closeErr != nil {
		return fmt.Errorf("close output file: %w", closeErr)
	}

	return nil
}
