package replication

import (
	"time"

	"profile-store/core/health"
)

// DefaultRepairDelays are the offsets from the original write at which a
// failed store is retried.
var DefaultRepairDelays = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}

// Config tunes probing, retries and timeouts.
type Config struct {
	// ProbeInterval is the pause between health probe cycles.
	ProbeInterval time.Duration `mapstructure:"probe_interval" default:"30s"`
	// OperationTimeout bounds every single store call and health probe.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" default:"5s"`
	// ReadRetries is the number of full read passes.
	ReadRetries int `mapstructure:"read_retries" default:"3"`
	// ReadRetryDelay is the pause between read passes.
	ReadRetryDelay time.Duration `mapstructure:"read_retry_delay" default:"1s"`
	// RepairDelays are measured from the original write, not from the
	// previous repair attempt.
	RepairDelays []time.Duration `mapstructure:"repair_delays" default:"5s,15s,45s"`
}

// HealthConfig returns the monitor settings derived from c.
func (c Config) HealthConfig() health.Config {
	return health.Config{Interval: c.ProbeInterval, Timeout: c.OperationTimeout}
}

func (c Config) withDefaults() Config {
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	if c.ReadRetries <= 0 {
		c.ReadRetries = 3
	}
	if c.ReadRetryDelay <= 0 {
		c.ReadRetryDelay = time.Second
	}
	if len(c.RepairDelays) == 0 {
		c.RepairDelays = DefaultRepairDelays
	}
	return c
}
