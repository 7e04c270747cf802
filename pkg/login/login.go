// Package login drives the shop's credential form end to end.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/steps"
)

// DefaultTimeout bounds the wait for the dashboard after submitting.
const DefaultTimeout = 10 * time.Second

// TimeoutError means the dashboard never became active.
type TimeoutError struct {
	Username string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("login as %s: dashboard not active within %s: %v", e.Username, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AssertionError means the page after login does not greet the account.
type AssertionError struct {
	Username string
	Err      error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("login as %s: %v", e.Username, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Orchestrator performs fresh logins. It never retries; retries belong to
// the runner and apply to the whole test.
type Orchestrator struct {
	timeout time.Duration
	logger  *logging.Logger
}

// NewOrchestrator creates an Orchestrator. A zero timeout means DefaultTimeout.
func NewOrchestrator(timeout time.Duration, logger *logging.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard("login")
	}
	return &Orchestrator{timeout: timeout, logger: logger}
}

// Timeout returns the success-signal timeout.
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// Login navigates to the root, submits acct's credentials, waits for the
// dashboard and checks the greeting.
func (o *Orchestrator) Login(ctx context.Context, page browser.Page, acct accounts.Account, tracer *steps.Tracer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pages.NewLoginPage(page, acct.Username, tracer).Navigate(); err != nil {
		return fmt.Errorf("login as %s: %w", acct.Username, err)
	}
	return o.Submit(ctx, page, acct, tracer)
}

// Submit is Login for a page already showing the login form.
func (o *Orchestrator) Submit(ctx context.Context, page browser.Page, acct accounts.Account, tracer *steps.Tracer) error {
	lp := pages.NewLoginPage(page, acct.Username, tracer)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := lp.Login(acct.Username, acct.Password); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return &TimeoutError{Username: acct.Username, Timeout: o.timeout, Err: err}
		}
		return fmt.Errorf("login as %s: %w", acct.Username, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := lp.WaitForLoginSuccess(o.timeout); err != nil {
		return &TimeoutError{Username: acct.Username, Timeout: o.timeout, Err: err}
	}

	if err := lp.AssertLoggedIn(); err != nil {
		return &AssertionError{Username: acct.Username, Err: err}
	}
	if acct.DisplayName != "" {
		greeting, err := page.Text(pages.SelGreeting)
		if err != nil {
			return &AssertionError{Username: acct.Username, Err: err}
		}
		if !strings.Contains(greeting, acct.DisplayName) {
			return &AssertionError{Username: acct.Username, Err: &pages.AssertionError{
				What: "greeting",
				Want: fmt.Sprintf("text containing %q", acct.DisplayName),
				Got:  greeting,
			}}
		}
	}

	o.logger.Infof("fresh login as %s took %s", acct.Username, time.Since(start).Round(time.Millisecond))
	return nil
}
