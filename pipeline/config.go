package pipeline

import "time"

const (
	defaultGenerateTimeout = 2 * time.Minute
	defaultUploadTimeout   = 30 * time.Second
	defaultTagTimeout      = 30 * time.Second
	defaultCatalogTimeout  = 30 * time.Second
	defaultRecordTimeout   = 5 * time.Second
	defaultPrice           = "19.99"
	defaultMaxPromptRunes  = 1000
	defaultMaxTitleRunes   = 80
)

// Config holds per-step timeouts and listing defaults.
type Config struct {
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	UploadTimeout   time.Duration `yaml:"upload_timeout"`
	TagTimeout      time.Duration `yaml:"tag_timeout"`
	CatalogTimeout  time.Duration `yaml:"catalog_timeout"`
	RecordTimeout   time.Duration `yaml:"record_timeout"`
	DefaultPrice    string        `yaml:"default_price"`
	NegativePrompt  string        `yaml:"negative_prompt"`
	MaxPromptRunes  int           `yaml:"max_prompt_runes"`
	// MaxTitleRunes bounds titles derived from the prompt.
	MaxTitleRunes int `yaml:"max_title_runes"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaultGenerateTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
	if c.TagTimeout <= 0 {
		c.TagTimeout = defaultTagTimeout
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = defaultCatalogTimeout
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = defaultRecordTimeout
	}
	if c.DefaultPrice == "" {
		c.DefaultPrice = defaultPrice
	}
	if c.MaxPromptRunes <= 0 {
		c.MaxPromptRunes = defaultMaxPromptRunes
	}
	if c.MaxTitleRunes <= 0 {
		c.MaxTitleRunes = defaultMaxTitleRunes
	}
}
