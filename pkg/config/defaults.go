package config

import "time"

// Pool defaults.
const (
	DefaultBlockSize = "4KiB"
	DefaultMaxNodes  = 0
)

// Bench defaults.
const (
	DefaultBenchCount   = 1_000_000
	DefaultBenchOrder   = OrderRandom
	DefaultBenchSparse  = true
	DefaultBenchSeed    = 0
	DefaultBenchFormat  = FormatText
	DefaultBenchShards  = 1
	DefaultBenchTimeout = 10 * time.Minute
)

// DefaultBenchTargets lists the structures measured when none are configured.
var DefaultBenchTargets = []string{"rbslot", "btree", "map"}

// Soak defaults.
const (
	DefaultSoakOps         = 200_000
	DefaultSoakKeys        = 4096
	DefaultSoakVerifyEvery = 1000
	DefaultSoakSeed        = 0
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)
