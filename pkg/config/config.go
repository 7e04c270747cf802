// Package config holds the harness settings: where the shop runs, how the
// browser is launched, how many workers run and where files go.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/authcache/pkg/logging"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL  = "WEB_URL"
	EnvHeadless = "HEADLESS"
	EnvCI       = "CI"
	EnvLogLevel = "LOG_LEVEL"
	EnvRunID    = "AUTHCACHE_RUN_ID"
)

// Config is the complete harness configuration.
type Config struct {
	// Base URL of the shop under test
	BaseURL string `yaml:"base_url" json:"base_url"`

	// CI toggles retries and the CI reporter set
	CI bool `yaml:"ci" json:"ci"`

	// RunID ties together the worker processes of one run
	RunID string `yaml:"run_id" json:"run_id"`

	// Directory holding session snapshots and the audit log
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Browser   BrowserConfig  `yaml:"browser" json:"browser"`
	Run       RunConfig      `yaml:"run" json:"run"`
	Timeouts  TimeoutConfig  `yaml:"timeouts" json:"timeouts"`
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
	Logging   LoggingConfig  `yaml:"logging" json:"logging"`
	Server    ServerConfig   `yaml:"server" json:"server"`
}

// BrowserConfig controls the Chromium launch.
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" json:"headless"`
	SlowMo         time.Duration `yaml:"slow_mo" json:"slow_mo"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`

	// Install downloads the browser driver before the first launch
	Install bool `yaml:"install" json:"install"`
}

// RunConfig controls scheduling.
type RunConfig struct {
	Workers int `yaml:"workers" json:"workers"`

	// Retries is the number of reruns for a failed test; -1 means
	// "2 on CI, 0 otherwise"
	Retries int `yaml:"retries" json:"retries"`

	// StartInterval spaces out test starts across all workers
	StartInterval time.Duration `yaml:"start_interval" json:"start_interval"`

	// Match and Skip are glob patterns over full test titles
	Match []string `yaml:"match" json:"match"`
	Skip  []string `yaml:"skip" json:"skip"`
}

// TimeoutConfig bounds every wait the harness performs.
type TimeoutConfig struct {
	Test         time.Duration `yaml:"test" json:"test"`
	Action       time.Duration `yaml:"action" json:"action"`
	Login        time.Duration `yaml:"login" json:"login"`
	OverlayHide  time.Duration `yaml:"overlay_hide" json:"overlay_hide"`
	OverlayRetry time.Duration `yaml:"overlay_retry" json:"overlay_retry"`
	Skeleton     time.Duration `yaml:"skeleton" json:"skeleton"`
}

// ArtifactConfig defines what the runner writes after a run.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	JSON     bool `yaml:"json" json:"json"`
	JUnit    bool `yaml:"junit" json:"junit"`
	Markdown bool `yaml:"markdown" json:"markdown"`

	// Failure evidence
	Screenshots  bool `yaml:"screenshots" json:"screenshots"`
	DOMSnapshots bool `yaml:"dom_snapshots" json:"dom_snapshots"`
}

// LoggingConfig defines logging configuration.
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Dir     string `yaml:"dir" json:"dir"`
	Console bool   `yaml:"console" json:"console"`
}

// ServerConfig configures the bundled demo shop.
type ServerConfig struct {
	Addr       string        `yaml:"addr" json:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl" json:"session_ttl"`

	// LoginRate is the sustained number of login attempts per second per
	// client address
	LoginRate  float64 `yaml:"login_rate" json:"login_rate"`
	LoginBurst int     `yaml:"login_burst" json:"login_burst"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "http://localhost:3000",
		CacheDir: ".auth",
		Browser: BrowserConfig{
			ViewportWidth:  1280,
			ViewportHeight: 720,
			Install:        true,
		},
		Run: RunConfig{
			Workers:       5,
			Retries:       -1,
			StartInterval: 200 * time.Millisecond,
		},
		Timeouts: TimeoutConfig{
			Test:         10 * time.Minute,
			Action:       25 * time.Second,
			Login:        10 * time.Second,
			OverlayHide:  5 * time.Second,
			OverlayRetry: 4 * time.Second,
			Skeleton:     40 * time.Second,
		},
		Artifacts: ArtifactConfig{
			Enabled:      true,
			OutputDir:    "test-results",
			JSON:         true,
			JUnit:        true,
			Screenshots:  true,
			DOMSnapshots: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:       ":3000",
			SessionTTL: 30 * time.Minute,
			LoginRate:  20,
			LoginBurst: 40,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays the environment onto c. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(EnvHeadless); v != "" {
		c.Browser.Headless = v == "true"
	}
	if v := getenv(EnvCI); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CI = b
		} else {
			// CI=yes and similar
			c.CI = true
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvRunID); v != "" {
		c.RunID = v
	}
}

// Retries resolves the configured retry count.
func (c *Config) Retries() int {
	if c.Run.Retries >= 0 {
		return c.Run.Retries
	}
	if c.CI {
		return 2
	}
	return 0
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("invalid base_url: %s (must start with http:// or https://)", c.BaseURL)
	}

	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}

	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Run.Retries < -1 {
		return fmt.Errorf("retries cannot be less than -1")
	}
	if c.Run.StartInterval < 0 {
		return fmt.Errorf("start_interval cannot be negative")
	}

	var errs []error
	for name, d := range map[string]time.Duration{
		"test":          c.Timeouts.Test,
		"action":        c.Timeouts.Action,
		"login":         c.Timeouts.Login,
		"overlay_hide":  c.Timeouts.OverlayHide,
		"overlay_retry": c.Timeouts.OverlayRetry,
		"skeleton":      c.Timeouts.Skeleton,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.Server.LoginRate < 0 || c.Server.LoginBurst < 0 {
		return fmt.Errorf("server login throttling cannot be negative")
	}

	return nil
}
