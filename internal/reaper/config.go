package reaper

import (
	"time"

	"github.com/smallbiznis/sensorhub/internal/config"
)

// Config controls the orphan sweep cadence.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	// GracePeriod protects identities whose registration may still be in flight.
	GracePeriod time.Duration
	LockTTL     time.Duration
	BatchSize   int
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 5 * time.Minute,
		GracePeriod: 10 * time.Minute,
		LockTTL:     2 * time.Minute,
		BatchSize:   500,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaults.GracePeriod
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Reaper.Enabled,
		RunInterval: cfg.Reaper.Interval,
		GracePeriod: cfg.Reaper.GracePeriod,
		LockTTL:     cfg.Reaper.LockTTL,
		BatchSize:   cfg.Reaper.BatchSize,
	}
}
