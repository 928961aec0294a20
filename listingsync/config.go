package listingsync

import "time"

const (
	defaultInterval  = time.Hour
	defaultBatchSize = 100
	defaultTimeout   = 30 * time.Second
)

// Config holds listing sync configuration.
type Config struct {
	Disabled     bool          `yaml:"disabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	// BatchTimeout bounds each catalog request.
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultInterval
	}
	if c.BatchSize <= 0 || c.BatchSize > 250 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultTimeout
	}
}
