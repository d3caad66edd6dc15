package config

import "time"

// Application-wide constants organized by domain

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	IngestQueryTimeout  = 2 * time.Minute
	StatsQueryTimeout   = 10 * time.Second
	DownloadTimeout     = 5 * time.Minute
	NetworkDialTimeout  = 5 * time.Second
	NetworkKeepAlive    = 30 * time.Second

	// Cache settings
	CacheExpiration      = 5 * time.Minute
	PriceCacheExpiration = 15 * time.Minute
	CacheSize            = 10000

	// Batch processing
	DefaultBatchSize     = 1000
	MinQueryBatchSize    = 100
	WorkerPoolSize       = 4
	MaxConcurrentBatches = 5
	MaxRetries           = 3
	RetryDelay           = 2 * time.Second
)

// Catalog Ingestion Constants
const (
	// Supported price guide schema version
	PriceGuideVersion = 1

	// Archive filenames start with the catalog date, e.g. 2024-03-01-prices.json.gz
	ArchiveDatePrefixLen = 10

	// Sample size for unknown-card diagnostics
	UnknownCardSampleSize = 10
)

// Analytics Constants
const (
	// Slope intervals in days, anchored at the latest observation
	SlopeIntervalShort  = 2
	SlopeIntervalMedium = 7
	SlopeIntervalLong   = 30

	// Ranking
	DefaultRankingLimit   = 20
	RankingOversampleMult = 50

	// Spike detection defaults
	DefaultSpikeWindow            = 3
	DefaultSpikeMinPercent        = 10.0
	DefaultSpikeMinAbsolute       = 0.5
	DefaultSpikePriceFloor        = 0.25
	DefaultSpikeAcceleratingRatio = 1.0

	// Rising-card screen
	RisingTrendFloor = 1.0
	RisingMinPercent = 1.0
)

// Logging Constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// SlopeIntervals returns the tracked intervals in ascending order.
func SlopeIntervals() []int {
	return []int{SlopeIntervalShort, SlopeIntervalMedium, SlopeIntervalLong}
}
