package worker

import "time"

// Config controls a periodic settlement job.
type Config struct {
	Interval time.Duration
	// LockTTL bounds how long one replica holds the job lease.
	LockTTL time.Duration
	// RunTimeout bounds a single run.
	RunTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:   time.Minute,
		LockTTL:    5 * time.Minute,
		RunTimeout: 2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}
