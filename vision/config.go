package vision

import "time"

const (
	defaultModel   = "gemini-2.5-flash"
	defaultMaxTags = 10
)

// Config holds Gemini configuration. Tagging is disabled without an APIKey.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	MaxTags int           `yaml:"max_tags"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether a tagger should be built.
func (c Config) Enabled() bool { return c.APIKey != "" }

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTags <= 0 {
		c.MaxTags = defaultMaxTags
	}
}
