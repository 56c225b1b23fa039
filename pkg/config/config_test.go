package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbslot/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rbslot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBlockSize, cfg.Pool.BlockSize)
	assert.Equal(t, config.DefaultBenchCount, cfg.Bench.Count)
	assert.Equal(t, config.OrderRandom, cfg.Bench.Order)
	assert.Equal(t, config.DefaultBenchTargets, cfg.Bench.Targets)
	assert.Equal(t, config.DefaultBenchTimeout, cfg.Bench.Timeout)
	assert.Equal(t, config.DefaultSoakVerifyEvery, cfg.Soak.VerifyEvery)
	assert.Equal(t, "text", cfg.Logging.Format)

	size, err := cfg.Pool.BlockSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 4096, size)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
pool:
  block_size: "64KiB"
  max_nodes: 1000

bench:
  count: 5000
  order: ascending
  targets: [rbslot]
  format: json
  timeout: "30s"

logging:
  level: debug
  format: json
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	size, err := cfg.Pool.BlockSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 64*1024, size)
	assert.Equal(t, uint32(1000), cfg.Pool.MaxNodes)
	assert.Equal(t, 5000, cfg.Bench.Count)
	assert.Equal(t, config.OrderAscending, cfg.Bench.Order)
	assert.Equal(t, []string{"rbslot"}, cfg.Bench.Targets)
	assert.Equal(t, config.FormatJSON, cfg.Bench.Format)
	assert.Equal(t, 30*time.Second, cfg.Bench.Timeout)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("RBSLOT_BENCH_COUNT", "123")
	t.Setenv("RBSLOT_POOL_BLOCK_SIZE", "1MiB")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 123, cfg.Bench.Count)

	size, err := cfg.Pool.BlockSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 1<<20, size)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"bad_block_size", "pool:\n  block_size: lots\n", config.ErrInvalidBlockSize},
		{"zero_block_size", "pool:\n  block_size: \"0\"\n", config.ErrInvalidBlockSize},
		{"zero_count", "bench:\n  count: 0\n", config.ErrInvalidCount},
		{"bad_order", "bench:\n  order: sideways\n", config.ErrInvalidOrder},
		{"bad_format", "bench:\n  format: xml\n", config.ErrInvalidFormat},
		{"zero_shards", "bench:\n  shards: 0\n", config.ErrInvalidShards},
		{"zero_verify", "soak:\n  verify_every: 0\n", config.ErrInvalidSoak},
		{"bad_level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"bad_log_format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"bad_ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
		{
			"metrics_and_otlp",
			"observability:\n  metrics_addr: \":9090\"\n  otlp_endpoint: localhost:4317\n",
			config.ErrMetricsConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
