package discord

import "time"

const (
	defaultAdminRole         = "bot-admin"
	defaultRateLimitInterval = time.Minute
	defaultRateLimitBurst    = 2
	defaultListingsLimit     = 5
)

// Config holds Discord-specific configuration.
type Config struct {
	Token          string `yaml:"token"`
	GuildID        string `yaml:"guild_id"`
	CommandChannel string `yaml:"command_channel"`
	AdminRole      string `yaml:"admin_role"`
	// SkipCommandRegistration leaves slash commands untouched on start.
	SkipCommandRegistration bool `yaml:"skip_command_registration"`
	// RateLimitInterval is how often a user earns a new dream. Negative
	// disables per-user limiting.
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
	ListingsLimit     int           `yaml:"listings_limit"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.AdminRole == "" {
		c.AdminRole = defaultAdminRole
	}
	if c.RateLimitInterval == 0 {
		c.RateLimitInterval = defaultRateLimitInterval
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if c.ListingsLimit <= 0 {
		c.ListingsLimit = defaultListingsLimit
	}
}
