package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MinCaptureInterval is the enforced floor for the capture ticker.
// Anything tighter turns screen capture into a busy loop.
const MinCaptureInterval = time.Second

// Config holds all tracker configuration.
type Config struct {
	Server      ServerConfig
	Capture     CaptureConfig
	Recognition RecognitionConfig
	Session     SessionConfig
	Summary     SummaryConfig
	Storage     StorageConfig
	Summarizer  SummarizerConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// CaptureConfig holds capture scheduler configuration.
type CaptureConfig struct {
	// Interval between capture ticks; values below MinCaptureInterval
	// are raised to the floor.
	Interval time.Duration `envconfig:"CAPTURE_INTERVAL" default:"5s"`
	// Exclusions lists bundle identifiers that are never captured.
	Exclusions []string `envconfig:"CAPTURE_EXCLUDE"`
	// Display selects which display to capture.
	Display int `envconfig:"CAPTURE_DISPLAY" default:"0"`
}

// RecognitionConfig holds text recognition configuration.
type RecognitionConfig struct {
	// MinConfidence drops observations below this threshold before they
	// are ever surfaced.
	MinConfidence float64 `envconfig:"RECOGNITION_MIN_CONFIDENCE" default:"0.3"`
	// Quality trades latency for accuracy: "fast" or "accurate".
	Quality string `envconfig:"RECOGNITION_QUALITY" default:"accurate"`
	// LanguageHints bias recognition; they never filter results.
	LanguageHints []string `envconfig:"RECOGNITION_LANGUAGES" default:"eng"`
	// Timeout bounds a single recognition call; on expiry the frame
	// degrades to an empty result.
	Timeout time.Duration `envconfig:"RECOGNITION_TIMEOUT" default:"10s"`
}

// SessionConfig holds session classification configuration.
type SessionConfig struct {
	// IdleThreshold closes the open session when the gap between samples
	// exceeds it, even for the same application. Zero derives 3x the
	// capture interval.
	IdleThreshold time.Duration `envconfig:"SESSION_IDLE_THRESHOLD" default:"0s"`
}

// SummaryConfig holds daily aggregation configuration.
type SummaryConfig struct {
	TopApps int `envconfig:"SUMMARY_TOP_APPS" default:"5"`
}

// StorageConfig holds the session store configuration.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:"glance.db"`
}

// SummarizerConfig holds the prose summarization collaborator configuration.
type SummarizerConfig struct {
	// BaseURL of an OpenAI-compatible completion endpoint. Empty disables
	// AI summaries; everything else keeps working.
	BaseURL string        `envconfig:"SUMMARIZER_URL"`
	APIKey  string        `envconfig:"SUMMARIZER_API_KEY"`
	Model   string        `envconfig:"SUMMARIZER_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"SUMMARIZER_TIMEOUT" default:"60s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "127.0.0.1",
		},
		Capture: CaptureConfig{
			Interval: 5 * time.Second,
		},
		Recognition: RecognitionConfig{
			MinConfidence: 0.3,
			Quality:       "accurate",
			LanguageHints: []string{"eng"},
			Timeout:       10 * time.Second,
		},
		Summary: SummaryConfig{
			TopApps: 5,
		},
		Storage: StorageConfig{
			Path: "glance.db",
		},
		Summarizer: SummarizerConfig{
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
	cfg.normalize()
	return cfg
}

// normalize enforces floors and derives dependent defaults.
func (c *Config) normalize() {
	if c.Capture.Interval < MinCaptureInterval {
		c.Capture.Interval = MinCaptureInterval
	}
	if c.Session.IdleThreshold <= 0 {
		c.Session.IdleThreshold = 3 * c.Capture.Interval
	}
	if c.Summary.TopApps <= 0 {
		c.Summary.TopApps = 5
	}
	if c.Recognition.MinConfidence < 0 {
		c.Recognition.MinConfidence = 0
	}
	if c.Recognition.MinConfidence > 1 {
		c.Recognition.MinConfidence = 1
	}
}
