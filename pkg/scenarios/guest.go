package scenarios

import (
	"strings"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/runner"
)

// GuestSuite covers the login form of a tab nobody logged into.
func GuestSuite() runner.Suite {
	visible := func(what string, isVisible func(*pages.LoginPage) bool) runner.TestFunc {
		return func(t *runner.T) error {
			lp := t.LoginPage()
			if err := lp.Navigate(); err != nil {
				return err
			}
			return check(isVisible(lp), "%s is not visible", what)
		}
	}

	return runner.Suite{
		Name: "Guest Tests",
		Tests: []runner.Test{
			{Title: "should display login page without authentication", Fn: visible("login form", (*pages.LoginPage).IsLoginFormVisible)},
			{Title: "should display username field", Fn: visible("username field", (*pages.LoginPage).IsUsernameFieldVisible)},
			{Title: "should display password field", Fn: visible("password field", (*pages.LoginPage).IsPasswordFieldVisible)},
			{Title: "should display submit button", Fn: visible("submit button", (*pages.LoginPage).IsSubmitButtonVisible)},
			{Title: "should show error for invalid credentials", Fn: invalidCredentialsShowError},
		},
	}
}

func invalidCredentialsShowError(t *runner.T) error {
	lp := t.LoginPage()
	if err := lp.Navigate(); err != nil {
		return err
	}
	if err := lp.Login("invalid-user", "invalid-pass"); err != nil {
		return err
	}
	if err := check(lp.HasLoginError(), "no login error shown"); err != nil {
		return err
	}
	msg, err := lp.ErrorMessage()
	if err != nil {
		return err
	}
	return check(strings.Contains(msg, "Invalid"), "unexpected login error %q", msg)
}

// AdminSuite logs in with the one-click admin button and browses as the
// administrator.
func AdminSuite() runner.Suite {
	return runner.Suite{
		Name: "Administrator login & navigation",
		Tests: []runner.Test{
			{Title: "admin button should log in and allow browsing", Fn: adminButtonLogsIn},
		},
	}
}

func adminButtonLogsIn(t *runner.T) error {
	lp := pages.NewLoginPage(t.Page, "admin", t.Tracer())
	if err := lp.Navigate(); err != nil {
		return err
	}
	if err := lp.LoginAsAdmin(); err != nil {
		return err
	}
	if err := lp.WaitForLoginSuccess(t.Env.Config.Timeouts.Login); err != nil {
		return err
	}

	d := pages.NewDashboardPage(t.Page, "admin", t.Tracer())
	if err := d.AssertRole(strings.ToUpper(string(accounts.RoleAdmin))); err != nil {
		return err
	}
	greeting, err := d.Greeting()
	if err != nil {
		return err
	}
	if err := check(strings.Contains(greeting, "Administrator"), "greeting %q does not name the administrator", greeting); err != nil {
		return err
	}
	if err := d.AddItemToCart(); err != nil {
		return err
	}
	if err := d.AssertCartNotEmpty(); err != nil {
		return err
	}
	return d.AssertAdminSectionVisible()
}
