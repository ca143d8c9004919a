package model

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all pipeline settings. It is read once at the start of a run
// and treated as immutable afterwards.
type Config struct {
	MySideline MySidelineConfig `mapstructure:"mysideline" yaml:"mysideline"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
}

// MySidelineConfig controls the scraper itself
type MySidelineConfig struct {
	SearchURL      string        `mapstructure:"url" yaml:"url"`
	EventURLPrefix string        `mapstructure:"event_url" yaml:"event_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	SoftDeadline   time.Duration `mapstructure:"soft_deadline" yaml:"soft_deadline"`
	RetryAttempts  int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`
	EnableScraping bool          `mapstructure:"enable_scraping" yaml:"enable_scraping"`
	UseMock        bool          `mapstructure:"use_mock" yaml:"use_mock"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	WatchInterval  time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
}

// StoreConfig controls the carnival store
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// OutputConfig controls logging and debug artifacts
type OutputConfig struct {
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose"`
	ArtifactDir string `mapstructure:"artifact_dir" yaml:"artifact_dir"`
}

// DefaultConfig returns the built-in defaults. Environment variables
// (MYSIDELINE_*), the config file, and flags override these in that order.
func DefaultConfig() *Config {
	return &Config{
		MySideline: MySidelineConfig{
			SearchURL:      "",
			EventURLPrefix: "https://profile.mysideline.com.au/register/clubsearch/?criteria=",
			RequestTimeout: 60 * time.Second,
			SoftDeadline:   10 * time.Minute,
			RetryAttempts:  3,
			RequestDelay:   2 * time.Second,
			EnableScraping: true,
			UseMock:        false,
			Headless:       true,
			UserAgent:      "sidelinesync/1.0 (+https://github.com/masterscarnivals/sidelinesync)",
			WatchInterval:  6 * time.Hour,
		},
		Store: StoreConfig{
			DataDir: "~/.sidelinesync",
		},
		Output: OutputConfig{
			Verbose:     false,
			ArtifactDir: "",
		},
	}
}

// Validate checks invariants that would make a run fail before the first
// card. SearchURL is only required when real scraping can happen.
func (c *Config) Validate() error {
	ms := c.MySideline
	if ms.UseMock || !ms.EnableScraping {
		return nil
	}
	if ms.SearchURL == "" {
		return fmt.Errorf("mysideline.url is required unless mock mode is enabled")
	}
	if _, err := url.ParseRequestURI(ms.SearchURL); err != nil {
		return fmt.Errorf("mysideline.url is not a valid URL: %w", err)
	}
	if ms.RetryAttempts < 1 {
		return fmt.Errorf("mysideline.retry_attempts must be at least 1, got %d", ms.RetryAttempts)
	}
	if ms.RequestTimeout <= 0 {
		return fmt.Errorf("mysideline.request_timeout must be positive, got %v", ms.RequestTimeout)
	}
	return nil
}
