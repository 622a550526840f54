package expiry

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config controls the points expiry sweep loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	RunTimeout   time.Duration

	// PointValue prices the expired points on the offsetting ledger entry.
	PointValue decimal.Decimal
}

// DefaultConfig returns the default sweep settings.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Hour,
		BatchSize:    200,
		RunTimeout:   30 * time.Second,
		PointValue:   decimal.NewFromFloat(0.01),
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.PointValue.IsZero() {
		c.PointValue = defaults.PointValue
	}
	return c
}
