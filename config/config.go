package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/discord"
	"github.com/tnicklin/dreamshop/fal"
	"github.com/tnicklin/dreamshop/listingsync"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/objectstore"
	"github.com/tnicklin/dreamshop/pipeline"
	"github.com/tnicklin/dreamshop/shopify"
	"github.com/tnicklin/dreamshop/store"
	"github.com/tnicklin/dreamshop/vision"
	"go.uber.org/config"
)

const defaultStorePath = "data/dreamshop.db"

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger   logger.Config      `yaml:"logger"`
	Discord  discord.Config     `yaml:"discord"`
	FAL      fal.Config         `yaml:"fal"`
	Storage  objectstore.Config `yaml:"storage"`
	Shopify  shopify.Config     `yaml:"shopify"`
	Vision   vision.Config      `yaml:"vision"`
	Store    store.Config       `yaml:"store"`
	Pipeline pipeline.Config    `yaml:"pipeline"`
	Sync     listingsync.Config `yaml:"sync"`
	Clock    clock.Config       `yaml:"clock"`
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration with sensible defaults.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		return nil, err
	}
	cfg.Defaults()
	return cfg, nil
}

// LoadEnvironment is the startup path: an optional .env file, then the YAML
// files (all optional), then environment overrides, defaults and validation.
func LoadEnvironment(envFile string, files ...string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := Load(files...)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = &AppConfig{}
	case err != nil:
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envBindings maps environment variables onto config fields.
var envBindings = []struct {
	key   string
	field func(*AppConfig) *string
}{
	{"DISCORD_TOKEN", func(c *AppConfig) *string { return &c.Discord.Token }},
	{"DISCORD_GUILD_ID", func(c *AppConfig) *string { return &c.Discord.GuildID }},
	{"FAL_KEY", func(c *AppConfig) *string { return &c.FAL.APIKey }},
	{"BACKBLAZE_BUCKET_NAME", func(c *AppConfig) *string { return &c.Storage.Bucket }},
	{"BACKBLAZE_KEY_ID", func(c *AppConfig) *string { return &c.Storage.KeyID }},
	{"BACKBLAZE_APPLICATION_KEY", func(c *AppConfig) *string { return &c.Storage.ApplicationKey }},
	{"BACKBLAZE_ENDPOINT_URL", func(c *AppConfig) *string { return &c.Storage.Endpoint }},
	{"SHOPIFY_SHOP_NAME", func(c *AppConfig) *string { return &c.Shopify.ShopName }},
	{"SHOPIFY_ADMIN_API_TOKEN", func(c *AppConfig) *string { return &c.Shopify.AccessToken }},
	{"GEMINI_API_KEY", func(c *AppConfig) *string { return &c.Vision.APIKey }},
}

// ApplyEnv overrides fields from non-empty environment variables.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) {
	for _, b := range envBindings {
		if v, ok := lookup(b.key); ok && strings.TrimSpace(v) != "" {
			*b.field(c) = strings.TrimSpace(v)
		}
	}
}

// Defaults applies each component's defaults.
func (c *AppConfig) Defaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if len(c.Logger.OutputPaths) == 0 {
		c.Logger.OutputPaths = []string{"stdout"}
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}

	c.Discord.Defaults()
	c.FAL.Defaults()
	c.Storage.Defaults()
	c.Shopify.Defaults()
	c.Vision.Defaults()
	c.Store.Defaults()
	c.Pipeline.Defaults()
	c.Sync.Defaults()
	c.Clock.Defaults()
}

// Validate reports every missing required setting at once. Call it after
// Defaults.
func (c *AppConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"DISCORD_TOKEN", c.Discord.Token},
		{"FAL_KEY", c.FAL.APIKey},
		{"BACKBLAZE_BUCKET_NAME", c.Storage.Bucket},
		{"BACKBLAZE_KEY_ID", c.Storage.KeyID},
		{"BACKBLAZE_APPLICATION_KEY", c.Storage.ApplicationKey},
		{"BACKBLAZE_ENDPOINT_URL", c.Storage.Endpoint},
		{"SHOPIFY_SHOP_NAME", c.Shopify.ShopName},
		{"SHOPIFY_ADMIN_API_TOKEN", c.Shopify.AccessToken},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}

	var problems []error
	if len(missing) > 0 {
		problems = append(problems, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}

	urls := []struct {
		name  string
		value string
	}{
		{"BACKBLAZE_ENDPOINT_URL", c.Storage.Endpoint},
		{"storage.public_base_url", c.Storage.PublicBaseURL},
		{"shopify.base_url", c.Shopify.BaseURL},
		{"fal.queue_url", c.FAL.QueueURL},
	}
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		if err := checkURL(u.value); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", u.name, err))
		}
	}

	return errors.Join(problems...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
