package pages

import (
	"fmt"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/steps"
)

// DashboardPage is the logged-in view.
type DashboardPage struct {
	Base

	// LoginsInThisTest is how many form logins the app saw while the
	// fixture prepared this page. Only set by fresh-login fixtures.
	LoginsInThisTest int
}

// NewDashboardPage binds a dashboard page object to page.
func NewDashboardPage(page browser.Page, username string, tracer *steps.Tracer) *DashboardPage {
	return &DashboardPage{Base: newBase("DashboardPage", page, username, tracer)}
}

// AssertDashboardLoaded checks the dashboard is the active page.
func (p *DashboardPage) AssertDashboardLoaded() error {
	return p.step("assert dashboard loaded", func() error {
		return p.assertVisible("dashboard", SelDashboardReady)
	})
}

// Greeting returns the greeting heading.
func (p *DashboardPage) Greeting() (string, error) {
	return p.text(SelGreeting)
}

// AssertUserIsLoggedIn checks for the greeting.
func (p *DashboardPage) AssertUserIsLoggedIn() error {
	return p.step("assert user is logged in", func() error {
		return p.assertContains("greeting", SelGreeting, "Hello")
	})
}

// AssertSessionActive is AssertUserIsLoggedIn under the name tests use
// after reloads.
func (p *DashboardPage) AssertSessionActive() error {
	return p.AssertUserIsLoggedIn()
}

// Reload reloads the page.
func (p *DashboardPage) Reload() error {
	return p.step("reload", p.Page.Reload)
}

// AssertPageStructureValid checks the dashboard container is visible.
func (p *DashboardPage) AssertPageStructureValid() error {
	return p.assertVisible("dashboard container", SelDashboard)
}

// Body returns the dashboard text.
func (p *DashboardPage) Body() (string, error) {
	return p.text(SelDashboard)
}

// AssertBodyNotEmpty checks the dashboard rendered some text.
func (p *DashboardPage) AssertBodyNotEmpty() error {
	body, err := p.Body()
	if err != nil {
		return err
	}
	if body == "" {
		return &AssertionError{What: "dashboard body", Want: "non-empty text", Got: body}
	}
	return nil
}

// Role returns the account type badge, e.g. "VIP".
func (p *DashboardPage) Role() (string, error) {
	return p.text(SelAccountType)
}

// AddItemToCart clicks the add item button.
func (p *DashboardPage) AddItemToCart() error {
	return p.step("add item to cart", func() error {
		return p.Page.Click(SelAddItem)
	})
}

// CartTotal returns the cart total text.
func (p *DashboardPage) CartTotal() (string, error) {
	return steps.Value(p.Steps, "DashboardPage: read cart total", func() (string, error) {
		return p.text(SelCartTotal)
	})
}

// ClearCart empties the cart.
func (p *DashboardPage) ClearCart() error {
	return p.step("clear cart", func() error {
		return p.Page.Click(SelClearCart)
	})
}

// Logout logs the user out.
func (p *DashboardPage) Logout() error {
	return p.step("logout", func() error {
		return p.Page.Click(SelLogout)
	})
}

// AssertCartHasItems checks at least one cart row is shown.
func (p *DashboardPage) AssertCartHasItems() error {
	return p.assertVisible("cart items", SelCartItem)
}

// AssertCartNotEmpty checks the total moved off zero.
func (p *DashboardPage) AssertCartNotEmpty() error {
	total, err := p.CartTotal()
	if err != nil {
		return err
	}
	if total == EmptyCartTotal {
		return &AssertionError{What: "cart total", Want: "non-zero total", Got: total}
	}
	return nil
}

// AssertOrderHistoryVisible checks the order table is shown.
func (p *DashboardPage) AssertOrderHistoryVisible() error {
	return p.assertVisible("order history", SelOrderTable)
}

// AssertAdminSectionVisible checks the admin-only section is shown.
func (p *DashboardPage) AssertAdminSectionVisible() error {
	return p.assertVisible("admin section", SelAdminSection)
}

// AssertRole checks the account type badge.
func (p *DashboardPage) AssertRole(want string) error {
	got, err := p.Role()
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{What: "account type", Want: fmt.Sprintf("%q", want), Got: got}
	}
	return nil
}

// LoginCount returns how many logins the app performed in the current
// document.
func (p *DashboardPage) LoginCount() (int, error) {
	return AppLoginCount(p.Page)
}

// AppLoginCount reads the shop's per-document login counter from page.
func AppLoginCount(page browser.Page) (int, error) {
	v, err := page.Evaluate(browser.ScriptLoginCount)
	if err != nil {
		return 0, err
	}
	return browser.Number(v)
}
