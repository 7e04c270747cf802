package scenarios

import (
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/demoshop"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/runner"
	"github.com/entrhq/authcache/pkg/shopapi"
)

// APISuite exercises the shop's JSON API directly and checks the API docs
// page is reachable from the admin dashboard.
func APISuite() runner.Suite {
	return runner.Suite{
		Name: "API demo endpoints",
		Tests: []runner.Test{
			{Title: "login succeeds with valid credentials", Fn: apiLoginSucceeds},
			{Title: "login fails with wrong password", Fn: apiLoginFails},
			{Title: "cart endpoints return expected structure", Fn: apiCartRoundTrip},
			{Title: "swagger page is reachable by browser", Fn: swaggerReachable},
		},
	}
}

func apiClient(t *runner.T) (*shopapi.Client, error) {
	return shopapi.NewClient(t.Env.Config.BaseURL)
}

func poolAccount(t *runner.T, username string) (accounts.Account, error) {
	acct, ok := accounts.Find(t.Env.Pool, username)
	if !ok {
		return accounts.Account{}, fmt.Errorf("account %s is not in the pool", username)
	}
	return acct, nil
}

func apiLoginSucceeds(t *runner.T) error {
	client, err := apiClient(t)
	if err != nil {
		return err
	}
	acct, err := poolAccount(t, "student")
	if err != nil {
		return err
	}
	sess, err := client.Login(t.Context(), acct.Username, acct.Password)
	if err != nil {
		return err
	}
	if err := check(sess.Username == acct.Username, "session for %q, want %q", sess.Username, acct.Username); err != nil {
		return err
	}
	prefix := "token_" + acct.Username + "_"
	return check(strings.HasPrefix(sess.Token, prefix), "token %q lacks prefix %q", sess.Token, prefix)
}

func apiLoginFails(t *runner.T) error {
	client, err := apiClient(t)
	if err != nil {
		return err
	}
	_, err = client.Login(t.Context(), "student", "bad")
	return check(errors.Is(err, shopapi.ErrInvalidCredentials), "want invalid credentials, got %v", err)
}

func apiCartRoundTrip(t *runner.T) error {
	client, err := apiClient(t)
	if err != nil {
		return err
	}
	acct, err := poolAccount(t, "student")
	if err != nil {
		return err
	}
	if _, err := client.Login(t.Context(), acct.Username, acct.Password); err != nil {
		return err
	}

	cart, err := client.Cart(t.Context())
	if err != nil {
		return err
	}
	if err := check(len(cart) == 0, "new session starts with %d cart items", len(cart)); err != nil {
		return err
	}

	cart, err = client.AddToCart(t.Context(), demoshop.Item{Name: "Gizmo", Price: 19.99})
	if err != nil {
		return err
	}
	return check(len(cart) > 0, "cart is empty after adding an item")
}

func swaggerReachable(t *runner.T) error {
	admin, err := poolAccount(t, "admin")
	if err != nil {
		return err
	}
	lp := pages.NewLoginPage(t.Page, admin.Username, t.Tracer())
	if err := lp.Navigate(); err != nil {
		return err
	}
	if err := lp.Login(admin.Username, admin.Password); err != nil {
		return err
	}
	if err := t.Page.WaitFor(pages.SelAdminSection, browser.StateVisible, t.Env.Config.Timeouts.Login); err != nil {
		return err
	}
	visible, err := t.Page.IsVisible(pages.SelSwagger)
	if err != nil {
		return err
	}
	if err := check(visible, "API docs button is not visible"); err != nil {
		return err
	}

	// The button opens the docs in a new tab; open them in this one instead.
	if err := t.Page.Goto(demoshop.RouteSwagger); err != nil {
		return err
	}
	title, err := t.Page.Text("#api-title")
	if err != nil {
		return err
	}
	return check(strings.Contains(title, demoshop.APITitle), "docs page title %q", title)
}
