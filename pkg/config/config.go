// Package config provides configuration loading and validation for rbslot.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/rbslot/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidBlockSize   = errors.New("invalid pool block size")
	ErrInvalidCount       = errors.New("bench count must be positive")
	ErrInvalidOrder       = errors.New("unknown key order")
	ErrInvalidFormat      = errors.New("unknown output format")
	ErrInvalidShards      = errors.New("bench shards must be positive")
	ErrInvalidSoak        = errors.New("soak parameters must be positive")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrMetricsConflict    = errors.New("metrics_addr cannot be combined with otlp_endpoint")
)

// Key orders accepted by the bench command.
const (
	OrderRandom     = "random"
	OrderAscending  = "ascending"
	OrderDescending = "descending"
)

// Report formats accepted by the bench command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

const envPrefix = "RBSLOT"

// Config holds all configuration for rbslot.
type Config struct {
	Pool          PoolConfig          `mapstructure:"pool"`
	Bench         BenchConfig         `mapstructure:"bench"`
	Soak          SoakConfig          `mapstructure:"soak"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig holds node allocator configuration.
type PoolConfig struct {
	// BlockSize is a human-readable byte size such as "4KiB" or "64kB".
	BlockSize string `mapstructure:"block_size"`
	// MaxNodes caps live nodes per tree. Zero means the full address space.
	MaxNodes uint32 `mapstructure:"max_nodes"`
}

// BlockSizeBytes parses BlockSize.
func (pc PoolConfig) BlockSizeBytes() (int, error) {
	size, err := humanize.ParseBytes(pc.BlockSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidBlockSize, pc.BlockSize, err)
	}

	if size == 0 || size > uint64(safeconv.MaxUint32) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBlockSize, pc.BlockSize)
	}

	return safeconv.MustUint64ToInt(size), nil
}

// BenchConfig holds benchmark driver configuration.
type BenchConfig struct {
	Order   string        `mapstructure:"order"`
	Format  string        `mapstructure:"format"`
	Output  string        `mapstructure:"output"`
	Targets []string      `mapstructure:"targets"`
	Timeout time.Duration `mapstructure:"timeout"`
	Count   int           `mapstructure:"count"`
	Shards  int           `mapstructure:"shards"`
	Seed    int64         `mapstructure:"seed"`
	Sparse  bool          `mapstructure:"sparse"`
}

// SoakConfig holds randomized invariant soak configuration.
type SoakConfig struct {
	Ops         int   `mapstructure:"ops"`
	Keys        int   `mapstructure:"keys"`
	VerifyEvery int   `mapstructure:"verify_every"`
	Seed        int64 `mapstructure:"seed"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel parses Level.
func (lc LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(lc.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, lc.Level)
	}

	return level, nil
}

// ObservabilityConfig holds telemetry export configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("rbslot")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/rbslot")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Pool defaults.
	viperCfg.SetDefault("pool.block_size", DefaultBlockSize)
	viperCfg.SetDefault("pool.max_nodes", DefaultMaxNodes)

	// Bench defaults.
	viperCfg.SetDefault("bench.count", DefaultBenchCount)
	viperCfg.SetDefault("bench.order", DefaultBenchOrder)
	viperCfg.SetDefault("bench.sparse", DefaultBenchSparse)
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
	viperCfg.SetDefault("bench.format", DefaultBenchFormat)
	viperCfg.SetDefault("bench.output", "")
	viperCfg.SetDefault("bench.targets", DefaultBenchTargets)
	viperCfg.SetDefault("bench.shards", DefaultBenchShards)
	viperCfg.SetDefault("bench.timeout", DefaultBenchTimeout)

	// Soak defaults.
	viperCfg.SetDefault("soak.ops", DefaultSoakOps)
	viperCfg.SetDefault("soak.keys", DefaultSoakKeys)
	viperCfg.SetDefault("soak.verify_every", DefaultSoakVerifyEvery)
	viperCfg.SetDefault("soak.seed", DefaultSoakSeed)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	// Observability defaults.
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
}

// Validate checks the configuration, including values overridden by CLI flags.
func (config *Config) Validate() error {
	_, err := config.Pool.BlockSizeBytes()
	if err != nil {
		return err
	}

	if config.Bench.Count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, config.Bench.Count)
	}

	if !slices.Contains([]string{OrderRandom, OrderAscending, OrderDescending}, config.Bench.Order) {
		return fmt.Errorf("%w: %q", ErrInvalidOrder, config.Bench.Order)
	}

	if !slices.Contains([]string{FormatText, FormatJSON, FormatYAML, FormatHTML}, config.Bench.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, config.Bench.Format)
	}

	if config.Bench.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Bench.Shards)
	}

	if config.Soak.Ops <= 0 || config.Soak.Keys <= 0 || config.Soak.VerifyEvery <= 0 {
		return fmt.Errorf("%w: ops=%d keys=%d verify_every=%d",
			ErrInvalidSoak, config.Soak.Ops, config.Soak.Keys, config.Soak.VerifyEvery)
	}

	_, err = config.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Observability.SampleRatio < 0 || config.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Observability.SampleRatio)
	}

	// Metrics go either to the OTLP collector or to the Prometheus endpoint.
	if config.Observability.MetricsAddr != "" && config.Observability.OTLPEndpoint != "" {
		return fmt.Errorf("%w: %q and %q",
			ErrMetricsConflict, config.Observability.MetricsAddr, config.Observability.OTLPEndpoint)
	}

	return nil
}
