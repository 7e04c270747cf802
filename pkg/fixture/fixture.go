// Package fixture hands tests an authenticated dashboard, preferring to
// replay a cached session over logging in again.
//
// The reuse-preferred path runs:
//
//	snapshot exists? -no-> fresh login -> capture+save -> audit(login)
//	                 -yes-> restore -> navigate -> valid? -yes-> audit(reuse)
//	                                                      -no-> fresh login -> capture+save -> audit(login)
//
// Reuse problems never fail a test. Login failures, a corrupt cache file,
// and failures to save or audit do.
package fixture

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/audit"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/login"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/session"
	"github.com/entrhq/authcache/pkg/snapshot"
	"github.com/entrhq/authcache/pkg/steps"
)

// TestInfo identifies the test a fixture is prepared for.
type TestInfo struct {
	WorkerID  int
	TitlePath []string

	// Tracer receives page-object steps; nil disables step logging
	Tracer *steps.Tracer
}

// Name joins the title path the way reports print it.
func (i TestInfo) Name() string {
	return strings.Join(i.TitlePath, " › ")
}

// Authenticated is a page logged in as the worker's account.
type Authenticated struct {
	Account   accounts.Account
	Dashboard *pages.DashboardPage

	// Reused is true when a cached session was replayed instead of
	// logging in
	Reused bool

	// ReuseErr records why a cached session could not even be tried,
	// such as a failed storage injection. A plain expired session is not
	// an error.
	ReuseErr error

	// LoginsInThisTest is the number of form logins the app counted while
	// the fixture ran. Only FreshLogin sets it.
	LoginsInThisTest int
}

// Deps are the collaborators a Fixtures value is built from. Assigner,
// Store and Audit are required.
type Deps struct {
	Assigner *accounts.Assigner
	Store    *snapshot.Store
	Checker  *session.Checker
	Login    *login.Orchestrator
	Audit    *audit.Log
	Logger   *logging.Logger
}

// Fixtures owns the per-run authentication state shared by all workers of
// one process.
type Fixtures struct {
	assigner *accounts.Assigner
	store    *snapshot.Store
	checker  *session.Checker
	login    *login.Orchestrator
	audit    *audit.Log
	logger   *logging.Logger
}

// New builds Fixtures from deps, filling in defaults for the optional ones.
func New(deps Deps) (*Fixtures, error) {
	if deps.Assigner == nil {
		return nil, fmt.Errorf("fixture: assigner is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("fixture: snapshot store is required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("fixture: audit log is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard("fixture")
	}
	checker := deps.Checker
	if checker == nil {
		checker = session.NewChecker(nil, logger)
	}
	orchestrator := deps.Login
	if orchestrator == nil {
		orchestrator = login.NewOrchestrator(0, logger)
	}

	return &Fixtures{
		assigner: deps.Assigner,
		store:    deps.Store,
		checker:  checker,
		login:    orchestrator,
		audit:    deps.Audit,
		logger:   logger,
	}, nil
}

// Account returns the account bound to info's worker.
func (f *Fixtures) Account(info TestInfo) accounts.Account {
	return f.assigner.Assign(info.WorkerID)
}

// LoginPage returns an unauthenticated login page for the worker's account.
// Nothing is navigated.
func (f *Fixtures) LoginPage(page browser.Page, info TestInfo) *pages.LoginPage {
	acct := f.Account(info)
	return pages.NewLoginPage(page, acct.Username, info.Tracer)
}

// ReusePreferred authenticates page as the worker's account, replaying the
// cached session when it is still valid. page must not have navigated yet.
func (f *Fixtures) ReusePreferred(ctx context.Context, page browser.Page, info TestInfo) (*Authenticated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct := f.Account(info)
	res := &Authenticated{Account: acct}

	snap, found, err := f.store.Load(acct.Username)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", info.WorkerID, err)
	}

	if found {
		f.logger.Infof("worker %d: found session snapshot for %s, attempting reuse", info.WorkerID, acct.Username)
		reused, reuseErr := f.tryReuse(page, acct, snap)
		if reuseErr != nil {
			f.logger.Errorf("worker %d: session restore for %s failed: %v", info.WorkerID, acct.Username, reuseErr)
			res.ReuseErr = reuseErr
		}
		if reused {
			f.logger.Infof("worker %d: session reuse successful for %s", info.WorkerID, acct.Username)
			if err := f.record(acct, info, audit.ApproachReuse, audit.ActionReuse); err != nil {
				return nil, err
			}
			res.Reused = true
			res.Dashboard = pages.NewDashboardPage(page, acct.Username, info.Tracer)
			return res, nil
		}
		f.logger.Infof("worker %d: session reuse failed for %s, will perform fresh login", info.WorkerID, acct.Username)
	}

	f.logger.Infof("worker %d: performing fresh login for %s", info.WorkerID, acct.Username)
	if err := f.login.Login(ctx, page, acct, info.Tracer); err != nil {
		return nil, err
	}
	if err := f.save(page, acct); err != nil {
		return nil, err
	}
	if err := f.record(acct, info, audit.ApproachReuse, audit.ActionLogin); err != nil {
		return nil, err
	}

	res.Dashboard = pages.NewDashboardPage(page, acct.Username, info.Tracer)
	return res, nil
}

// FreshLogin always logs in through the form, ignoring any cached session,
// and refreshes the cache afterwards.
func (f *Fixtures) FreshLogin(ctx context.Context, page browser.Page, info TestInfo) (*Authenticated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct := f.Account(info)
	f.logger.Infof("worker %d: performing fresh login for %s (no session reuse)", info.WorkerID, acct.Username)

	lp := pages.NewLoginPage(page, acct.Username, info.Tracer)
	if err := lp.Navigate(); err != nil {
		return nil, fmt.Errorf("login as %s: %w", acct.Username, err)
	}

	before := f.loginCount(page)
	if err := f.login.Submit(ctx, page, acct, info.Tracer); err != nil {
		return nil, err
	}
	after := f.loginCount(page)

	if err := f.save(page, acct); err != nil {
		return nil, err
	}
	if err := f.record(acct, info, audit.ApproachFresh, audit.ActionLogin); err != nil {
		return nil, err
	}

	dash := pages.NewDashboardPage(page, acct.Username, info.Tracer)
	dash.LoginsInThisTest = after - before
	return &Authenticated{
		Account:          acct,
		Dashboard:        dash,
		LoginsInThisTest: dash.LoginsInThisTest,
	}, nil
}

// tryReuse restores snap and reports whether the app accepted it. An error
// means the restore itself broke, as opposed to the session being stale.
func (f *Fixtures) tryReuse(page browser.Page, acct accounts.Account, snap snapshot.Snapshot) (bool, error) {
	if err := snapshot.Restore(page, acct.Username, snap); err != nil {
		return false, err
	}
	if err := page.Goto("/"); err != nil {
		return false, fmt.Errorf("navigate after restore: %w", err)
	}
	if err := snapshot.CheckRestored(page, acct.Username); err != nil {
		return false, err
	}
	return f.checker.IsValid(page, acct.Username), nil
}

func (f *Fixtures) save(page browser.Page, acct accounts.Account) error {
	snap, err := snapshot.Capture(page)
	if err != nil {
		return fmt.Errorf("capture session for %s: %w", acct.Username, err)
	}
	return f.store.Save(acct.Username, snap)
}

func (f *Fixtures) record(acct accounts.Account, info TestInfo, approach audit.Approach, action audit.Action) error {
	err := f.audit.Log(audit.Record{
		Username: acct.Username,
		Approach: approach,
		TestName: info.Name(),
		WorkerID: info.WorkerID,
		Action:   action,
	})
	if err != nil {
		return fmt.Errorf("audit %s for %s: %w", action, acct.Username, err)
	}
	return nil
}

// loginCount reads the app's counter, treating an unreadable one as zero.
func (f *Fixtures) loginCount(page browser.Page) int {
	n, err := pages.AppLoginCount(page)
	if err != nil {
		f.logger.Debugf("login counter unreadable: %v", err)
		return 0
	}
	return n
}
