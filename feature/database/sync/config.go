package sync

import "time"

// Config holds configuration for sync jobs.
type Config struct {
	// BatchSize is the page size of table syncs.
	BatchSize int `mapstructure:"batch_size" default:"500"`
	// RatePerSecond caps users synced per second by SyncAllUsers.
	// Zero or less disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second" default:"50"`
	// ReadTimeout bounds each source read.
	ReadTimeout time.Duration `mapstructure:"read_timeout" default:"10s"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}
