package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/fixture"
	"github.com/entrhq/authcache/pkg/runner"
)

// WorkerSessionsSuite checks that every worker keeps its own account, cart
// and session across tests.
func WorkerSessionsSuite() runner.Suite {
	return runner.Suite{
		Name: "Session Storage Demo with Multiple Workers",
		Tests: []runner.Test{
			{Title: "worker gets assigned account round-robin", Fn: workerGetsRoundRobinAccount},
			{Title: "each worker maintains independent session", Fn: workerMaintainsIndependentSession},
			{Title: "session storage persists across page reloads", Fn: sessionPersistsAcrossReloads},
			{Title: "different user roles show different order history", Fn: rolesShowOrderHistory},
		},
	}
}

func workerGetsRoundRobinAccount(t *runner.T) error {
	auth, err := t.Dashboard()
	if err != nil {
		return err
	}
	pool := t.Env.Pool
	want := pool[accounts.Index(t.WorkerID(), len(pool))]
	if err := check(auth.Account.Username == want.Username,
		"worker %d: want account %s, got %s", t.WorkerID(), want.Username, auth.Account.Username); err != nil {
		return err
	}
	t.Logf("worker %d assigned to %s", t.WorkerID(), auth.Account.Username)
	return nil
}

func workerMaintainsIndependentSession(t *runner.T) error {
	auth, err := t.Dashboard()
	if err != nil {
		return err
	}
	d := auth.Dashboard
	if err := d.AddItemToCart(); err != nil {
		return err
	}
	if err := d.AssertCartHasItems(); err != nil {
		return err
	}
	if err := d.AssertCartNotEmpty(); err != nil {
		return err
	}
	total, _ := d.CartTotal()
	t.Logf("worker %d (%s) has cart: %s", t.WorkerID(), d.Username, total)
	return nil
}

func sessionPersistsAcrossReloads(t *runner.T) error {
	auth, err := t.Dashboard()
	if err != nil {
		return err
	}
	d := auth.Dashboard
	if err := d.AddItemToCart(); err != nil {
		return err
	}
	if err := d.Reload(); err != nil {
		return err
	}
	if err := d.AssertSessionActive(); err != nil {
		return err
	}
	if err := d.AssertCartNotEmpty(); err != nil {
		return fmt.Errorf("cart lost on reload: %w", err)
	}
	t.Logf("worker %d session persisted after reload", t.WorkerID())
	return nil
}

func rolesShowOrderHistory(t *runner.T) error {
	auth, err := t.Dashboard()
	if err != nil {
		return err
	}
	d := auth.Dashboard
	if err := d.AssertRole(strings.ToUpper(string(auth.Account.Role))); err != nil {
		return err
	}
	if err := d.AssertOrderHistoryVisible(); err != nil {
		return err
	}
	t.Logf("worker %d (%s) has role %s", t.WorkerID(), d.Username, auth.Account.Role)
	return nil
}

// ComparisonSuites run the same checks once on reused sessions and once on
// fresh logins, so the audit log shows what session reuse saves.
func ComparisonSuites() []runner.Suite {
	const parent = "Session Storage vs Fresh Login Comparison"

	reuse := runner.Suite{
		Name:      parent + runner.TitleSeparator + "Session Storage Approach (reuses auth)",
		BeforeAll: clearAuditLog,
		AfterAll:  logAuditStats,
	}
	fresh := runner.Suite{
		Name:      parent + runner.TitleSeparator + "Fresh Login Approach (no auth reuse)",
		BeforeAll: clearAuditLog,
		AfterAll:  logAuditStats,
	}

	for _, c := range comparisonChecks {
		reuse.Tests = append(reuse.Tests, runner.Test{Title: c.title, Fn: withDashboard(false, c.fn)})
		fresh.Tests = append(fresh.Tests, runner.Test{Title: c.title, Fn: withDashboard(true, c.fn)})
	}
	fresh.Tests = append(fresh.Tests, runner.Test{Title: "consistency check", Fn: withDashboard(true, freshLoginConsistency)})

	return []runner.Suite{reuse, fresh}
}

type dashboardCheck func(t *runner.T, auth *fixture.Authenticated) error

var comparisonChecks = []struct {
	title string
	fn    dashboardCheck
}{
	{"worker assignment", func(t *runner.T, auth *fixture.Authenticated) error {
		_, ok := accounts.Find(t.Env.Pool, auth.Dashboard.Username)
		return check(ok, "%s is not in the account pool", auth.Dashboard.Username)
	}},
	{"maintains session", func(_ *runner.T, auth *fixture.Authenticated) error {
		return auth.Dashboard.AssertUserIsLoggedIn()
	}},
	{"cart operations", func(_ *runner.T, auth *fixture.Authenticated) error {
		if err := auth.Dashboard.AddItemToCart(); err != nil {
			return err
		}
		return auth.Dashboard.AssertCartNotEmpty()
	}},
	{"add multiple items", func(_ *runner.T, auth *fixture.Authenticated) error {
		for i := 0; i < 2; i++ {
			if err := auth.Dashboard.AddItemToCart(); err != nil {
				return err
			}
		}
		return auth.Dashboard.AssertCartNotEmpty()
	}},
	{"verify user role", func(_ *runner.T, auth *fixture.Authenticated) error {
		if err := auth.Dashboard.AssertUserIsLoggedIn(); err != nil {
			return err
		}
		return auth.Dashboard.AssertRole(strings.ToUpper(string(auth.Account.Role)))
	}},
}

func freshLoginConsistency(_ *runner.T, auth *fixture.Authenticated) error {
	if err := check(!auth.Reused, "fresh dashboard reports a reused session"); err != nil {
		return err
	}
	return check(auth.LoginsInThisTest == 1, "want exactly one form login, got %d", auth.LoginsInThisTest)
}

func withDashboard(fresh bool, fn dashboardCheck) runner.TestFunc {
	tag := "SESSION"
	if fresh {
		tag = "FRESH"
	}
	return func(t *runner.T) error {
		get := t.Dashboard
		if fresh {
			get = t.FreshDashboard
		}
		auth, err := get()
		if err != nil {
			return err
		}
		if err := fn(t, auth); err != nil {
			return err
		}
		t.Logf("[%s] worker %d (%s) ok", tag, t.WorkerID(), auth.Dashboard.Username)
		return nil
	}
}

// clearAuditLog starts the comparison from an empty audit log. Clear only
// takes effect once per run, so both suites can call it.
func clearAuditLog(_ context.Context, env *runner.Env) error {
	return env.Audit.Clear()
}

func logAuditStats(_ context.Context, env *runner.Env) error {
	stats, err := env.Audit.Stats()
	if err != nil {
		return err
	}
	env.Logger.With("comparison").Infof("audit: %d reuse-preferred, %d fresh, %d form logins, %d reuses",
		stats.ReuseCount, stats.FreshCount, stats.Logins(), stats.Reuses())
	return nil
}
