package cmprices

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/ellavondegurechaff/cmprices/cmprices/database"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log       LogConfig         `toml:"log"`
	DB        database.DBConfig `toml:"db"`
	Catalog   CatalogConfig     `toml:"catalog"`
	Analytics AnalyticsConfig   `toml:"analytics"`
	Spaces    SpacesConfig      `toml:"spaces"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type CatalogConfig struct {
	ProductsURL string `toml:"products_url"`
	PricesURL   string `toml:"prices_url"`
	ArchiveDir  string `toml:"archive_dir"`
	MaxRetries  int    `toml:"max_retries"`
	RetryDelay  int    `toml:"retry_delay_seconds"`
}

type AnalyticsConfig struct {
	// Expansion IDs whose cards count as standard-legal for rising-card screens
	LegalStandardSets []int64 `toml:"legal_standard_sets"`

	SlopeIntervals []int `toml:"slope_intervals"`

	SpikeWindow            int     `toml:"spike_window"`
	SpikeMinPercent        float64 `toml:"spike_min_percent"`
	SpikeMinAbsolute       float64 `toml:"spike_min_absolute"`
	SpikePriceFloor        float64 `toml:"spike_price_floor"`
	SpikeAcceleratingRatio float64 `toml:"spike_accelerating_ratio"`

	RisingTrendFloor float64 `toml:"rising_trend_floor"`
	RisingMinPercent float64 `toml:"rising_min_percent"`

	// Bounded worker pool size for per-card screening fan-out
	Concurrency int64 `toml:"concurrency"`
}

type SpacesConfig struct {
	Key         string `toml:"key"`
	Secret      string `toml:"secret"`
	Region      string `toml:"region"`
	Bucket      string `toml:"bucket"`
	ArchiveRoot string `toml:"archive_root"`
}

func (c *Config) applyDefaults() {
	if c.Catalog.MaxRetries == 0 {
		c.Catalog.MaxRetries = config.MaxRetries
	}
	if c.Catalog.RetryDelay == 0 {
		c.Catalog.RetryDelay = int(config.RetryDelay.Seconds())
	}
	if len(c.Analytics.SlopeIntervals) == 0 {
		c.Analytics.SlopeIntervals = config.SlopeIntervals()
	}
	if c.Analytics.SpikeWindow == 0 {
		c.Analytics.SpikeWindow = config.DefaultSpikeWindow
	}
	if c.Analytics.SpikeMinPercent == 0 {
		c.Analytics.SpikeMinPercent = config.DefaultSpikeMinPercent
	}
	if c.Analytics.SpikeMinAbsolute == 0 {
		c.Analytics.SpikeMinAbsolute = config.DefaultSpikeMinAbsolute
	}
	if c.Analytics.SpikePriceFloor == 0 {
		c.Analytics.SpikePriceFloor = config.DefaultSpikePriceFloor
	}
	if c.Analytics.SpikeAcceleratingRatio == 0 {
		c.Analytics.SpikeAcceleratingRatio = config.DefaultSpikeAcceleratingRatio
	}
	if c.Analytics.RisingTrendFloor == 0 {
		c.Analytics.RisingTrendFloor = config.RisingTrendFloor
	}
	if c.Analytics.RisingMinPercent == 0 {
		c.Analytics.RisingMinPercent = config.RisingMinPercent
	}
	if c.Analytics.Concurrency <= 0 {
		c.Analytics.Concurrency = config.WorkerPoolSize
	}
}
