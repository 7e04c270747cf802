package main

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"github.com/entrhq/authcache/pkg/config"
	"github.com/entrhq/authcache/pkg/demoshop"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/runner"
	"github.com/entrhq/authcache/pkg/scenarios"
)

func (a *app) runCmd() *cobra.Command {
	var (
		serve     bool
		list      bool
		verbosity string
	)

	cmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Run e2e suites on parallel workers",
		Long: `Run the built-in e2e suites against the demo shop.

Each worker is bound to one test account. The first test of a worker logs in
through the form and caches the session; later tests replay it. Suites are
selected by key; with no arguments every suite runs.

Examples:
  authcache run
  authcache run guest admin --workers 2
  authcache run --serve --match "*cart*"
  CI=true authcache run --headless`,
		ValidArgs: scenarios.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			suites, err := scenarios.Select(args)
			if err != nil {
				return err
			}
			if list {
				return listTests(cmd.OutOrStdout(), cfg, suites)
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, suites, serve, runner.ParseVerbosity(verbosity))
		},
	}

	flags := cmd.Flags()
	flags.IntP("workers", "w", 0, "number of parallel workers")
	flags.Int("retries", -1, "retries per failed test (-1: 2 on CI, 0 otherwise)")
	flags.Duration("start-interval", 0, "minimum spacing between test starts")
	flags.StringSlice("match", nil, "only run tests whose full title matches one of these patterns")
	flags.StringSlice("skip", nil, "skip tests whose full title matches one of these patterns")
	flags.Bool("headless", false, "run the browser headless (or HEADLESS=true)")
	flags.Bool("headed", false, "show the browser window")
	flags.Bool("install", true, "download the browser driver if missing")
	flags.Bool("ci", false, "CI mode: retries and the markdown summary (or CI=true)")
	flags.Duration("timeout", 0, "per-test timeout")
	flags.String("output-dir", "", "directory for reports and failure evidence")
	flags.String("shop-addr", "", "listen address of the embedded shop (with --serve)")
	flags.BoolVar(&serve, "serve", false, "start the demo shop in-process and test against it")
	flags.BoolVar(&list, "list", false, "list the selected tests without running them")
	flags.StringVarP(&verbosity, "verbosity", "v", "normal", "output: quiet, normal or verbose")

	a.bind(cmd, "workers", "run.workers")
	a.bind(cmd, "retries", "run.retries")
	a.bind(cmd, "start-interval", "run.start_interval")
	a.bind(cmd, "match", "run.match")
	a.bind(cmd, "skip", "run.skip")
	a.bind(cmd, "headless", "browser.headless")
	a.bind(cmd, "headed", "browser.headed")
	a.bind(cmd, "install", "browser.install")
	a.bind(cmd, "ci", "ci")
	a.bind(cmd, "timeout", "timeouts.test")
	a.bind(cmd, "output-dir", "artifacts.output_dir")
	a.bind(cmd, "shop-addr", "server.addr")
	return cmd
}

func (a *app) run(ctx context.Context, out, errOut io.Writer, cfg *config.Config, suites []runner.Suite, serve bool, verbosity runner.Verbosity) error {
	logger, err := logging.NewLogger("authcache")
	if err != nil {
		fmt.Fprintf(errOut, "Warning: %v\n", err)
	}
	defer logger.Close()

	if serve {
		baseURL, stop, err := startShop(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stop()
		cfg.BaseURL = baseURL
	}

	tabs, release, err := a.newTabs(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warnf("failed to shut down browser: %v", err)
		}
	}()

	env, err := runner.NewEnv(cfg, nil, logger)
	if err != nil {
		return err
	}
	r, err := runner.New(env, tabs, runner.WithReporter(runner.NewReporter(out, verbosity)))
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx, suites)
	if err != nil {
		return err
	}
	if logger.LogPath() != "" {
		fmt.Fprintf(out, "Log: %s\n", logger.LogPath())
	}
	if !summary.OK() {
		return errTestsFailed
	}
	return nil
}

// startShop serves the demo shop on cfg.Server.Addr in the background and
// returns its base URL. stop shuts it down.
func startShop(ctx context.Context, cfg *config.Config, logger *logging.Logger) (string, func(), error) {
	shop, err := newShop(cfg, logger)
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- shop.Serve(ctx, ln) }()

	stop := func() {
		cancel()
		if err := <-done; err != nil {
			logger.Warnf("demo shop: %v", err)
		}
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("http://127.0.0.1:%d", port), stop, nil
}

func newShop(cfg *config.Config, logger *logging.Logger) (*demoshop.Server, error) {
	return demoshop.NewServer(demoshop.Options{
		SessionTTL: cfg.Server.SessionTTL,
		LoginRate:  cfg.Server.LoginRate,
		LoginBurst: cfg.Server.LoginBurst,
		Logger:     logger.With("demoshop"),
	})
}

// listTests prints the tests the filters select.
func listTests(w io.Writer, cfg *config.Config, suites []runner.Suite) error {
	filter, err := runner.NewFilter(cfg.Run.Match, cfg.Run.Skip)
	if err != nil {
		return err
	}
	st := newStyles(w)
	n := 0
	for _, suite := range suites {
		fmt.Fprintln(w, st.title.Render(suite.Name))
		for _, t := range suite.Tests {
			title := suite.Name + runner.TitleSeparator + t.Title
			if !filter.Includes(title) {
				fmt.Fprintf(w, "  %s\n", st.muted.Render("- "+t.Title+" (filtered)"))
				continue
			}
			n++
			fmt.Fprintf(w, "  %s\n", t.Title)
		}
	}
	fmt.Fprintf(w, "\n%d tests\n", n)
	return nil
}
