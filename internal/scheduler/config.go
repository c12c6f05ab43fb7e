package scheduler

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

// Config controls reconciliation cadence and the leader lock.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockKey     string
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
		LockKey:     "waitline:reconciler:leader",
		LockTTL:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
