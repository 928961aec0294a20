package fal

import "time"

const (
	defaultQueueURL      = "https://queue.fal.run"
	defaultModel         = "fal-ai/fast-sdxl"
	defaultImageSize     = "landscape_4_3"
	defaultSteps         = 28
	defaultGuidanceScale = 3.5
	defaultTimeout       = 2 * time.Minute
	defaultPollInterval  = time.Second
)

// Config holds fal.ai configuration.
type Config struct {
	APIKey               string        `yaml:"api_key"`
	QueueURL             string        `yaml:"queue_url"`
	Model                string        `yaml:"model"`
	ImageSize            string        `yaml:"image_size"`
	Steps                int           `yaml:"num_inference_steps"`
	GuidanceScale        float64       `yaml:"guidance_scale"`
	DisableSafetyChecker bool          `yaml:"disable_safety_checker"`
	Timeout              time.Duration `yaml:"timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	// RequestsPerSecond paces submissions. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.QueueURL == "" {
		c.QueueURL = defaultQueueURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.ImageSize == "" {
		c.ImageSize = defaultImageSize
	}
	if c.Steps <= 0 {
		c.Steps = defaultSteps
	}
	if c.GuidanceScale <= 0 {
		c.GuidanceScale = defaultGuidanceScale
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}
