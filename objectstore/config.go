package objectstore

import "strings"

const (
	defaultPrefix     = "dreams"
	defaultRegion     = "us-east-1"
	defaultMaxRetries = 3
)

// Config holds S3-compatible storage configuration. Endpoint is the
// provider's S3 endpoint, e.g. https://s3.us-west-004.backblazeb2.com.
type Config struct {
	Bucket         string `yaml:"bucket"`
	KeyID          string `yaml:"key_id"`
	ApplicationKey string `yaml:"application_key"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	// PublicBaseURL replaces <endpoint>/<bucket> in returned URLs when set.
	PublicBaseURL string `yaml:"public_base_url"`
	Prefix        string `yaml:"prefix"`
	MaxRetries    int    `yaml:"max_retries"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Endpoint != "" && !strings.Contains(c.Endpoint, "://") {
		c.Endpoint = "https://" + c.Endpoint
	}
	if c.Region == "" {
		c.Region = regionFromEndpoint(c.Endpoint)
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

// regionFromEndpoint extracts the region from hosts shaped like
// s3.<region>.backblazeb2.com or s3.<region>.amazonaws.com.
func regionFromEndpoint(endpoint string) string {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.SplitN(host, "/", 2)[0]
	parts := strings.Split(host, ".")
	if len(parts) >= 4 && parts[0] == "s3" {
		return parts[1]
	}
	return defaultRegion
}
