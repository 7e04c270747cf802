package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/config"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/runner"
)

// defaultConfigFile is read when --config is not given and it exists.
const defaultConfigFile = "authcache.yaml"

// envPrefix namespaces the environment variables bound to flags, e.g.
// AUTHCACHE_WORKERS. The plain WEB_URL, HEADLESS, CI and LOG_LEVEL
// variables are read as well.
const envPrefix = "AUTHCACHE"

// errTestsFailed makes the process exit non-zero after the report was
// printed.
var errTestsFailed = errors.New("tests failed")

// tabsFunc opens the browser for a run. The returned func releases it.
type tabsFunc func(cfg *config.Config, logger *logging.Logger) (runner.TabFactory, func() error, error)

type app struct {
	v       *viper.Viper
	newTabs tabsFunc
}

func newRootCmd() *cobra.Command {
	return newApp(playwrightTabs).rootCmd()
}

func newApp(tabs tabsFunc) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return &app{v: v, newTabs: tabs}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authcache",
		Short:         "Parallel e2e runs against the demo shop with cached login sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default ./"+defaultConfigFile+" when present)")
	flags.String("base-url", "", "base URL of the shop under test (or WEB_URL)")
	flags.String("cache-dir", "", "directory for session snapshots and the audit log")
	flags.String("run-id", "", "run identifier shared by cooperating processes (or AUTHCACHE_RUN_ID)")
	flags.String("log-level", "", "log level: debug, info, warn, error (or LOG_LEVEL)")
	flags.String("log-dir", "", "directory for run log files")
	a.bind(root, "config", "config")
	a.bind(root, "base-url", "base_url")
	a.bind(root, "cache-dir", "cache_dir")
	a.bind(root, "run-id", "run_id")
	a.bind(root, "log-level", "logging.level")
	a.bind(root, "log-dir", "logging.dir")

	root.AddCommand(
		a.runCmd(),
		a.serveCmd(),
		a.statsCmd(),
		a.clearCmd(),
		a.accountsCmd(),
	)
	return root
}

// bind ties the named flag of cmd to a viper key. Env lookups use the key,
// so "logging.dir" is AUTHCACHE_LOGGING_DIR.
func (a *app) bind(cmd *cobra.Command, name, key string) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(name)
	}
	_ = a.v.BindPFlag(key, f)
}

// loadConfig resolves the configuration: defaults, then the YAML file, then
// the plain environment, then AUTHCACHE_* variables and flags.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	a.applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Configure(logging.Options{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		RunID:   cfg.RunID,
		Console: cfg.Logging.Console,
	}); err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = logging.GetRunID()
	}
	return cfg, nil
}

func (a *app) applyOverrides(cfg *config.Config) {
	v := a.v
	setString := func(key string, dst *string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}
	setString("base_url", &cfg.BaseURL)
	setString("cache_dir", &cfg.CacheDir)
	setString("run_id", &cfg.RunID)
	setString("logging.level", &cfg.Logging.Level)
	setString("logging.dir", &cfg.Logging.Dir)
	setString("artifacts.output_dir", &cfg.Artifacts.OutputDir)
	setString("server.addr", &cfg.Server.Addr)

	if v.IsSet("run.workers") {
		cfg.Run.Workers = v.GetInt("run.workers")
	}
	if v.IsSet("run.retries") {
		cfg.Run.Retries = v.GetInt("run.retries")
	}
	if v.IsSet("run.start_interval") {
		cfg.Run.StartInterval = v.GetDuration("run.start_interval")
	}
	if v.IsSet("run.match") {
		cfg.Run.Match = v.GetStringSlice("run.match")
	}
	if v.IsSet("run.skip") {
		cfg.Run.Skip = v.GetStringSlice("run.skip")
	}
	if v.IsSet("browser.headed") && v.GetBool("browser.headed") {
		cfg.Browser.Headless = false
	}
	if v.IsSet("browser.headless") && v.GetBool("browser.headless") {
		cfg.Browser.Headless = true
	}
	if v.IsSet("browser.install") {
		cfg.Browser.Install = v.GetBool("browser.install")
	}
	if v.IsSet("ci") {
		cfg.CI = v.GetBool("ci")
	}
	if v.IsSet("timeouts.test") {
		cfg.Timeouts.Test = v.GetDuration("timeouts.test")
	}
}

// playwrightTabs launches Chromium for a run.
func playwrightTabs(cfg *config.Config, logger *logging.Logger) (runner.TabFactory, func() error, error) {
	manager := browser.NewSessionManager(browser.LaunchOptions{
		Headless: cfg.Browser.Headless,
		SlowMo:   cfg.Browser.SlowMo,
		Install:  cfg.Browser.Install,
	})
	if err := manager.Initialize(); err != nil {
		return nil, nil, err
	}
	manager.SetMaxSessions(cfg.Run.Workers)

	tabs := runner.NewPlaywrightTabs(manager,
		browser.SessionOptions{
			BaseURL:  cfg.BaseURL,
			Viewport: &browser.Viewport{Width: cfg.Browser.ViewportWidth, Height: cfg.Browser.ViewportHeight},
			Timeout:  cfg.Timeouts.Action,
		},
		browser.OverlayOptions{
			HideTimeout:     cfg.Timeouts.OverlayHide,
			RetryTimeout:    cfg.Timeouts.OverlayRetry,
			SkeletonTimeout: cfg.Timeouts.Skeleton,
		},
		logger.With("tabs"))
	return tabs, manager.Shutdown, nil
}
