package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbslot/internal/bench"
	"github.com/Sumatoshi-tech/rbslot/pkg/config"
	"github.com/Sumatoshi-tech/rbslot/pkg/observability"
)

// SoakCommand holds the flag values of the soak command.
type SoakCommand struct {
	blockSize   string
	output      string
	ops         int
	keys        int
	verifyEvery int
	seed        int64
	maxNodes    uint32
}

// NewSoakCommand creates the soak command.
func NewSoakCommand() *cobra.Command {
	sc := &SoakCommand{}

	cobraCmd := &cobra.Command{
		Use:   "soak",
		Short: "Apply random operations and check invariants against a reference map",
		Args:  cobra.NoArgs,
		RunE:  sc.run,
	}

	flags := cobraCmd.Flags()
	flags.IntVar(&sc.ops, "ops", config.DefaultSoakOps, "Number of random operations")
	flags.IntVar(&sc.keys, "keys", config.DefaultSoakKeys, "Size of the key space")
	flags.IntVar(&sc.verifyEvery, "verify-every", config.DefaultSoakVerifyEvery, "Check tree invariants every N operations")
	flags.Int64Var(&sc.seed, "seed", config.DefaultSoakSeed, "Random seed")
	flags.StringVar(&sc.blockSize, "block-size", config.DefaultBlockSize, "Allocator block size (e.g., '4KiB', '64KiB')")
	flags.Uint32Var(&sc.maxNodes, "max-nodes", config.DefaultMaxNodes, "Cap on live nodes (0 = address space)")
	flags.StringVarP(&sc.output, "output", "o", "", "Output file (default: stdout)")

	return cobraCmd
}

func (sc *SoakCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("ops") {
		cfg.Soak.Ops = sc.ops
	}

	if flags.Changed("keys") {
		cfg.Soak.Keys = sc.keys
	}

	if flags.Changed("verify-every") {
		cfg.Soak.VerifyEvery = sc.verifyEvery
	}

	if flags.Changed("seed") {
		cfg.Soak.Seed = sc.seed
	}

	if flags.Changed("block-size") {
		cfg.Pool.BlockSize = sc.blockSize
	}

	if flags.Changed("max-nodes") {
		cfg.Pool.MaxNodes = sc.maxNodes
	}
}

func (sc *SoakCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return err
	}

	blockSize, err := cfg.Pool.BlockSizeBytes()
	if err != nil {
		return err
	}

	tel, err := startTelemetry(cmd, cfg, observability.ModeSoak)
	if err != nil {
		return err
	}

	defer tel.close(context.WithoutCancel(cmd.Context()))

	runner := bench.NewRunner(tel.providers.Logger, tel.providers.Tracer, tel.metrics)

	result, err := runner.Soak(cmd.Context(), bench.SoakOptions{
		Ops:         cfg.Soak.Ops,
		Keys:        cfg.Soak.Keys,
		VerifyEvery: cfg.Soak.VerifyEvery,
		Seed:        cfg.Soak.Seed,
		BlockSize:   blockSize,
		MaxNodes:    cfg.Pool.MaxNodes,
	})
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), sc.output, func(w io.Writer) error {
		return bench.WriteSoakText(w, result)
	})
}
