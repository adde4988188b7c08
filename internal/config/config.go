package config

import "time"

// Config holds runtime settings for the sync core.
//
// Units: all intervals and timeouts are time.Duration values.
type Config struct {
	// DatabasePath is the SQLite file backing the record store.
	DatabasePath string

	// SyncInterval is the periodic sync cadence.
	SyncInterval time.Duration

	// SyncBatchSize is how many operations one sync pass claims.
	SyncBatchSize int

	// MaxRetries is the retry ceiling for failed operations.
	MaxRetries int

	// MaxQueueSize caps the number of in-flight operations; further
	// enqueues are rejected until the queue drains.
	MaxQueueSize int

	// Retention is how long completed operations are kept before cleanup.
	Retention time.Duration

	// ScanTimeout bounds a single capture attempt.
	ScanTimeout time.Duration

	// LocationTimeout bounds the best-effort geolocation lookup after a read.
	LocationTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "assetsync.db"
	c.SyncInterval = 30 * time.Second
	c.SyncBatchSize = 10
	c.MaxRetries = 3
	c.MaxQueueSize = 1000
	c.Retention = 7 * 24 * time.Hour
	c.ScanTimeout = 30 * time.Second
	c.LocationTimeout = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
