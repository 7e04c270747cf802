package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, ".auth", cfg.CacheDir)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Login)
	assert.Equal(t, 40*time.Second, cfg.Timeouts.Skeleton)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Test)
	assert.False(t, cfg.Browser.Headless)
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authcache.yaml")
		data := []byte(`
base_url: https://shop.example.test
cache_dir: /tmp/sessions
browser:
  headless: true
run:
  workers: 3
  match: ["*worker*"]
timeouts:
  login: 15s
`)
		require.NoError(t, os.WriteFile(path, data, 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "https://shop.example.test", cfg.BaseURL)
		assert.Equal(t, "/tmp/sessions", cfg.CacheDir)
		assert.True(t, cfg.Browser.Headless)
		assert.Equal(t, 3, cfg.Run.Workers)
		assert.Equal(t, []string{"*worker*"}, cfg.Run.Match)
		assert.Equal(t, 15*time.Second, cfg.Timeouts.Login)
		// untouched keys keep their defaults
		assert.Equal(t, 25*time.Second, cfg.Timeouts.Action)
		assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("run: [unclosed"), 0600))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "nothing set keeps defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "base url and headless",
			env:  map[string]string{EnvBaseURL: "http://127.0.0.1:8080", EnvHeadless: "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
				assert.True(t, cfg.Browser.Headless)
			},
		},
		{
			name: "headless only when exactly true",
			env:  map[string]string{EnvHeadless: "1"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Browser.Headless)
			},
		},
		{
			name: "ci enables retries",
			env:  map[string]string{EnvCI: "yes"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.CI)
				assert.Equal(t, 2, cfg.Retries())
			},
		},
		{
			name: "ci false",
			env:  map[string]string{EnvCI: "false"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.CI)
				assert.Equal(t, 0, cfg.Retries())
			},
		},
		{
			name: "log level and run id",
			env:  map[string]string{EnvLogLevel: "DEBUG", EnvRunID: "run-7"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "run-7", cfg.RunID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ApplyEnv(func(key string) string { return tt.env[key] })
			tt.check(t, cfg)
		})
	}
}

func TestRetriesExplicit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CI = true
	cfg.Run.Retries = 1
	assert.Equal(t, 1, cfg.Retries())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "base_url is required"},
		{"bad scheme", func(c *Config) { c.BaseURL = "localhost:3000" }, "invalid base_url"},
		{"no cache dir", func(c *Config) { c.CacheDir = "" }, "cache_dir is required"},
		{"zero workers", func(c *Config) { c.Run.Workers = 0 }, "workers must be at least 1"},
		{"bad retries", func(c *Config) { c.Run.Retries = -2 }, "retries cannot be less than -1"},
		{"zero login timeout", func(c *Config) { c.Timeouts.Login = 0 }, "timeouts.login must be positive"},
		{"bad viewport", func(c *Config) { c.Browser.ViewportWidth = 0 }, "viewport"},
		{"artifacts without dir", func(c *Config) { c.Artifacts.OutputDir = "" }, "output_dir"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid logging level"},
		{"no session ttl", func(c *Config) { c.Server.SessionTTL = 0 }, "session_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateDefaultsEmptyLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logging.Level)
}
