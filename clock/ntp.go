package clock

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// Logger is a minimal logging interface satisfied by logger.Logger.
type Logger interface {
	InfoW(msg string, keysAndValues ...any)
	WarnW(msg string, keysAndValues ...any)
}

// Config holds NTP clock configuration. An empty Server disables NTP.
type Config struct {
	Server   string        `yaml:"ntp_server"`
	Interval time.Duration `yaml:"ntp_interval"`
	Timeout  time.Duration `yaml:"ntp_timeout"`
}

const (
	defaultInterval = 30 * time.Minute
	defaultTimeout  = 5 * time.Second
)

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// NTPClock provides drift-corrected wall-clock time by periodically
// syncing with an NTP server.
type NTPClock struct {
	server   string
	interval time.Duration
	timeout  time.Duration
	logger   Logger
	query    func(server string, opts ntp.QueryOptions) (*ntp.Response, error)

	mu     sync.RWMutex
	offset time.Duration
}

// NewNTP creates an NTPClock. Run must be called for it to sync.
func NewNTP(cfg Config, log Logger) *NTPClock {
	cfg.Defaults()
	return &NTPClock{
		server:   cfg.Server,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   log,
		query:    ntp.QueryWithOptions,
	}
}

// Now returns the current time adjusted by the NTP offset.
func (c *NTPClock) Now() time.Time {
	c.mu.RLock()
	off := c.offset
	c.mu.RUnlock()
	return time.Now().Add(off)
}

// Offset returns the current NTP offset.
func (c *NTPClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Run syncs once and then re-syncs on the configured interval until ctx
// is done. It always returns nil; sync failures keep the last offset.
func (c *NTPClock) Run(ctx context.Context) error {
	c.sync()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sync()
		}
	}
}

func (c *NTPClock) sync() {
	resp, err := c.query(c.server, ntp.QueryOptions{Timeout: c.timeout})
	if err != nil {
		if c.logger != nil {
			c.logger.WarnW("ntp sync failed, keeping last offset", "server", c.server, "error", err)
		}
		return
	}

	c.mu.Lock()
	c.offset = resp.ClockOffset
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.InfoW("ntp sync", "server", c.server, "offset", resp.ClockOffset)
	}
}
