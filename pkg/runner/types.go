package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/audit"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/config"
	"github.com/entrhq/authcache/pkg/fixture"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/snapshot"
	"github.com/entrhq/authcache/pkg/steps"
)

// TitleSeparator joins suite and test titles.
const TitleSeparator = " › "

// TestFunc is the body of a test. A returned error fails the attempt.
type TestFunc func(t *T) error

// Test is one registered test.
type Test struct {
	Title string
	Fn    TestFunc

	// NoOverlayHandlers opens the tab without the sale banner and skeleton
	// handlers
	NoOverlayHandlers bool
}

// Suite groups tests under a common title. BeforeAll runs once before any
// test of the run starts, AfterAll once after all of them finished.
type Suite struct {
	Name  string
	Tests []Test

	BeforeAll func(ctx context.Context, env *Env) error
	AfterAll  func(ctx context.Context, env *Env) error
}

// Env is what every test of a run shares.
type Env struct {
	Config   *config.Config
	RunID    string
	Pool     []accounts.Account
	Fixtures *fixture.Fixtures
	Store    *snapshot.Store
	Audit    *audit.Log
	Logger   *logging.Logger
}

// T is handed to a running test attempt.
type T struct {
	Env     *Env
	Info    fixture.TestInfo
	Page    browser.Page
	Attempt int

	ctx    context.Context
	logger *logging.Logger
}

// Context is cancelled when the test times out or the run is aborted.
func (t *T) Context() context.Context {
	return t.ctx
}

// Title is the full title of the running test.
func (t *T) Title() string {
	return t.Info.Name()
}

// WorkerID is the stable index of the worker running the test.
func (t *T) WorkerID() int {
	return t.Info.WorkerID
}

// Tracer records the test's steps.
func (t *T) Tracer() *steps.Tracer {
	return t.Info.Tracer
}

// Logf writes to the run log, tagged with the test title.
func (t *T) Logf(format string, args ...interface{}) {
	t.logger.Infof("[%s] %s", t.Title(), fmt.Sprintf(format, args...))
}

// Dashboard returns a dashboard authenticated as the worker's account,
// reusing a cached session when possible.
func (t *T) Dashboard() (*fixture.Authenticated, error) {
	return t.Env.Fixtures.ReusePreferred(t.ctx, t.Page, t.Info)
}

// FreshDashboard returns a dashboard reached through a form login,
// ignoring any cached session.
func (t *T) FreshDashboard() (*fixture.Authenticated, error) {
	return t.Env.Fixtures.FreshLogin(t.ctx, t.Page, t.Info)
}

// LoginPage returns the unauthenticated login page for the worker's account.
func (t *T) LoginPage() *pages.LoginPage {
	return t.Env.Fixtures.LoginPage(t.Page, t.Info)
}

// Status is the outcome of a test across all its attempts.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"

	// StatusFlaky is a test that failed at least once and then passed
	StatusFlaky Status = "flaky"
)

// Attempt is one execution of a test.
type Attempt struct {
	Number    int           `json:"number"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Steps     []steps.Step  `json:"steps,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

// TestResult is the final outcome of one test.
type TestResult struct {
	Suite    string        `json:"suite"`
	Title    string        `json:"title"`
	WorkerID int           `json:"workerId"`
	Username string        `json:"username"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Attempts []Attempt     `json:"attempts"`
}

// FullTitle joins suite and test title.
func (r TestResult) FullTitle() string {
	return strings.Join([]string{r.Suite, r.Title}, TitleSeparator)
}

// Error returns the error of the last attempt.
func (r TestResult) Error() string {
	if len(r.Attempts) == 0 {
		return ""
	}
	return r.Attempts[len(r.Attempts)-1].Error
}

// Summary describes a whole run.
type Summary struct {
	RunID     string        `json:"runId"`
	BaseURL   string        `json:"baseUrl"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Workers   int           `json:"workers"`
	Retries   int           `json:"retries"`

	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Flaky    int `json:"flaky"`
	Filtered int `json:"filtered"`

	Results []TestResult `json:"results"`

	// Audit is the audit log state at the end of the run
	Audit *audit.Stats `json:"audit,omitempty"`

	// Errors from suite hooks
	HookErrors []string `json:"hookErrors,omitempty"`
}

// OK reports whether nothing failed.
func (s *Summary) OK() bool {
	return s.Failed == 0 && len(s.HookErrors) == 0
}

// Total is the number of tests that ran.
func (s *Summary) Total() int {
	return len(s.Results)
}
