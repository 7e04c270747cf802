// Package runner executes e2e suites on a fixed pool of parallel workers.
//
// Each worker has a stable ID, which selects its test account. Every test
// attempt gets a fresh tab so browser storage never leaks between tests;
// the authentication cache is what carries sessions across them. Test
// starts are staggered through a token bucket, failed tests are retried in
// the same worker, and every attempt is bounded by the test timeout.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/audit"
	"github.com/entrhq/authcache/pkg/config"
	"github.com/entrhq/authcache/pkg/fixture"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/login"
	"github.com/entrhq/authcache/pkg/session"
	"github.com/entrhq/authcache/pkg/snapshot"
	"github.com/entrhq/authcache/pkg/steps"
)

// NewEnv wires the authentication cache for a run. The run ID comes from
// cfg, or is generated when cfg has none.
func NewEnv(cfg *config.Config, pool []accounts.Account, logger *logging.Logger) (*Env, error) {
	if logger == nil {
		logger = logging.Discard("runner")
	}
	if len(pool) == 0 {
		pool = accounts.DefaultPool()
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	store := snapshot.NewStore(cfg.CacheDir, logger.With("snapshot"))
	log := audit.New(cfg.CacheDir, runID, audit.WithLogger(logger.With("audit")))

	fixtures, err := fixture.New(fixture.Deps{
		Assigner: accounts.NewAssigner(pool, logger.With("accounts")),
		Store:    store,
		Checker:  session.NewChecker(nil, logger.With("session")),
		Login:    login.NewOrchestrator(cfg.Timeouts.Login, logger.With("login")),
		Audit:    log,
		Logger:   logger.With("fixture"),
	})
	if err != nil {
		return nil, err
	}

	return &Env{
		Config:   cfg,
		RunID:    runID,
		Pool:     pool,
		Fixtures: fixtures,
		Store:    store,
		Audit:    log,
		Logger:   logger,
	}, nil
}

// Runner runs suites.
type Runner struct {
	cfg       *config.Config
	env       *Env
	tabs      TabFactory
	filter    *Filter
	reporter  *Reporter
	artifacts *ArtifactWriter
	limiter   *rate.Limiter
	logger    *logging.Logger

	// drainTimeout bounds the wait for a timed-out test body to return
	drainTimeout time.Duration
}

// defaultDrainTimeout is how long a timed-out test may keep running after
// its tab was closed before the worker moves on anyway.
const defaultDrainTimeout = 30 * time.Second

// Option configures a Runner.
type Option func(*Runner)

// WithReporter replaces the default stdout reporter.
func WithReporter(r *Reporter) Option {
	return func(rn *Runner) {
		rn.reporter = r
	}
}

// WithDrainTimeout bounds how long a worker waits for a timed-out test body
// to return before starting its next attempt.
func WithDrainTimeout(d time.Duration) Option {
	return func(rn *Runner) {
		rn.drainTimeout = d
	}
}

// New creates a runner for env's configuration, opening tabs from tabs.
func New(env *Env, tabs TabFactory, opts ...Option) (*Runner, error) {
	if env == nil || env.Config == nil || env.Fixtures == nil {
		return nil, fmt.Errorf("runner: environment is incomplete")
	}
	if tabs == nil {
		return nil, fmt.Errorf("runner: tab factory is required")
	}
	cfg := env.Config
	if cfg.Run.Workers < 1 {
		return nil, fmt.Errorf("runner: workers must be at least 1, got %d", cfg.Run.Workers)
	}

	filter, err := NewFilter(cfg.Run.Match, cfg.Run.Skip)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.Run.StartInterval > 0 {
		limit = rate.Every(cfg.Run.StartInterval)
	}

	if env.Logger == nil {
		env.Logger = logging.Discard("runner")
	}
	logger := env.Logger

	r := &Runner{
		cfg:       cfg,
		env:       env,
		tabs:      tabs,
		filter:    filter,
		artifacts: NewArtifactWriter(cfg.Artifacts, cfg.CI),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With("runner"),

		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter(nil, VerbosityNormal)
	}
	return r, nil
}

type job struct {
	index int
	suite *Suite
	test  Test
}

func (j job) title() string {
	return j.suite.Name + TitleSeparator + j.test.Title
}

// Run executes every selected test and returns the summary. Test failures
// are reported in the summary, not as an error; the error is set only when
// ctx ended the run early or the reports could not be written.
func (r *Runner) Run(ctx context.Context, suites []Suite) (*Summary, error) {
	summary := &Summary{
		RunID:     r.env.RunID,
		BaseURL:   r.cfg.BaseURL,
		StartTime: time.Now(),
		Workers:   r.cfg.Run.Workers,
		Retries:   r.cfg.Retries(),
	}

	var jobs []job
	var active []*Suite
	for i := range suites {
		suite := &suites[i]
		selected := 0
		for _, t := range suite.Tests {
			j := job{suite: suite, test: t}
			if !r.filter.Includes(j.title()) {
				summary.Filtered++
				continue
			}
			selected++
			j.index = len(jobs)
			jobs = append(jobs, j)
		}
		if selected > 0 {
			active = append(active, suite)
		}
	}

	workers := r.cfg.Run.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	r.reporter.RunStarted(r.env.RunID, len(jobs), workers)
	r.logger.Infof("run %s: %d tests, %d workers, %d retries", r.env.RunID, len(jobs), workers, summary.Retries)

	failedHooks := make(map[*Suite]bool)
	for _, suite := range active {
		if suite.BeforeAll == nil {
			continue
		}
		if err := suite.BeforeAll(ctx, r.env); err != nil {
			r.hookFailed(summary, suite, "beforeAll", err)
			failedHooks[suite] = true
		}
	}

	results := make([]TestResult, len(jobs))
	queue := make(chan job)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, j := range jobs {
			if failedHooks[j.suite] {
				continue
			}
			select {
			case queue <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		workerID := w
		g.Go(func() error {
			for j := range queue {
				if err := r.limiter.Wait(gctx); err != nil {
					return err
				}
				res := r.runTest(gctx, workerID, j)
				results[j.index] = res
				r.reporter.TestFinished(res)
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, suite := range active {
		if suite.AfterAll == nil || failedHooks[suite] {
			continue
		}
		if err := suite.AfterAll(context.WithoutCancel(ctx), r.env); err != nil {
			r.hookFailed(summary, suite, "afterAll", err)
		}
	}

	for _, res := range results {
		if res.Title == "" {
			continue
		}
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFlaky:
			summary.Flaky++
		default:
			summary.Failed++
		}
	}

	if r.env.Audit != nil {
		if stats, err := r.env.Audit.Stats(); err != nil {
			r.logger.Warnf("failed to read audit log: %v", err)
		} else {
			summary.Audit = &stats
		}
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	r.reporter.Summary(summary)
	if err := r.artifacts.WriteAll(summary); err != nil {
		return summary, fmt.Errorf("failed to write reports: %w", err)
	}
	if runErr != nil {
		return summary, fmt.Errorf("run aborted: %w", runErr)
	}
	return summary, nil
}

func (r *Runner) hookFailed(summary *Summary, suite *Suite, hook string, err error) {
	r.logger.Errorf("%s %s failed: %v", suite.Name, hook, err)
	r.reporter.HookFailed(suite.Name, hook, err)
	summary.HookErrors = append(summary.HookErrors, fmt.Sprintf("%s %s: %v", suite.Name, hook, err))
}

// runTest runs all attempts of one test on a worker.
func (r *Runner) runTest(ctx context.Context, workerID int, j job) TestResult {
	acct := r.env.Fixtures.Account(fixture.TestInfo{WorkerID: workerID})
	res := TestResult{
		Suite:    j.suite.Name,
		Title:    j.test.Title,
		WorkerID: workerID,
		Username: acct.Username,
		Status:   StatusFailed,
	}

	start := time.Now()
	retries := r.cfg.Retries()
	for attempt := 0; attempt <= retries; attempt++ {
		r.reporter.TestStarted(workerID, j.title(), attempt)
		a := r.runAttempt(ctx, workerID, j, attempt)
		res.Attempts = append(res.Attempts, a)

		if a.Error == "" {
			res.Status = StatusPassed
			if attempt > 0 {
				res.Status = StatusFlaky
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < retries {
			r.reporter.AttemptFailed(workerID, j.title(), attempt, fmt.Errorf("%s", firstLine(a.Error)))
		}
	}
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) runAttempt(ctx context.Context, workerID int, j job, attempt int) Attempt {
	title := j.title()
	logger := r.env.Logger.With(fmt.Sprintf("worker-%d", workerID))
	tracer := steps.NewTracer("", logger)

	start := time.Now()
	a := Attempt{Number: attempt}
	finish := func(err error) Attempt {
		if err != nil {
			a.Error = err.Error()
		}
		a.Steps = tracer.Steps()
		a.Duration = time.Since(start)
		return a
	}

	tab, err := r.tabs.OpenTab(title, TabOptions{OverlayHandlers: !j.test.NoOverlayHandlers})
	if err != nil {
		return finish(err)
	}
	var closeOnce sync.Once
	closeTab := func() {
		closeOnce.Do(func() {
			if err := tab.Close(); err != nil {
				logger.Warnf("failed to close tab for %s: %v", title, err)
			}
		})
	}
	defer closeTab()

	tctx, cancel := ctx, context.CancelFunc(func() {})
	if r.cfg.Timeouts.Test > 0 {
		tctx, cancel = context.WithTimeout(ctx, r.cfg.Timeouts.Test)
	}
	defer cancel()

	t := &T{
		Env: r.env,
		Info: fixture.TestInfo{
			WorkerID:  workerID,
			TitlePath: []string{j.suite.Name, j.test.Title},
			Tracer:    tracer,
		},
		Page:    tab.Page(),
		Attempt: attempt,
		ctx:     tctx,
		logger:  logger,
	}

	done := make(chan error, 1)
	go func() { done <- call(j.test.Fn, t) }()

	timedOut := false
	select {
	case err = <-done:
	case <-tctx.Done():
		timedOut = true
		err = fmt.Errorf("test did not finish within %s: %w", r.cfg.Timeouts.Test, tctx.Err())
	}
	if err == nil {
		err = tab.OverlayErr()
	}

	if err != nil {
		logger.Errorf("%s failed on attempt %d: %v", title, attempt+1, err)
		paths, werr := r.artifacts.WriteFailure(tab.Page(), title, attempt)
		if werr != nil {
			logger.Warnf("failed to save failure evidence: %v", werr)
		}
		a.Artifacts = paths
	}

	if timedOut {
		// The body may still be writing this account's snapshot and audit
		// records. Closing the tab fails its pending browser calls; the next
		// attempt starts only once it has returned.
		closeTab()
		r.drain(logger, title, done)
	}
	return finish(err)
}

// drain waits for a timed-out test body to return, up to drainTimeout.
func (r *Runner) drain(logger *logging.Logger, title string, done <-chan error) {
	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Errorf("%s still running %s after its timeout; continuing without it", title, r.drainTimeout)
	}
}

// call runs fn, turning a panic into an error.
func call(fn TestFunc, t *T) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("test panicked: %v\n%s", v, strings.TrimSpace(string(debug.Stack())))
		}
	}()
	return fn(t)
}
