package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls sweep cadence and batch sizes.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	BatchSize   int
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Minute,
		JobTimeout:  5 * time.Minute,
		BatchSize:   100,
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
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

func ProvideConfig() Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_RUN_INTERVAL_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.RunInterval = time.Duration(parsed) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_JOB_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.JobTimeout = time.Duration(parsed) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_BATCH_SIZE")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.BatchSize = parsed
		}
	}
	return cfg
}
