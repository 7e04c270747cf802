// Package pages holds page objects for the demo shop. Each page object is a
// thin struct over a browser.Page; there is no inheritance chain, only the
// shared Base helpers.
package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/steps"
)

// Selectors of the demo shop front-end.
const (
	SelLoginForm      = "#login-form"
	SelUsername       = "#username"
	SelPassword       = "#password"
	SelSubmit         = `button[type="submit"]`
	SelLoginError     = "#login-error"
	SelAdminLogin     = "#admin-login-btn"
	SelDashboard      = "#dashboard-page"
	SelDashboardReady = "#dashboard-page.active"
	SelGreeting       = "#user-greeting h3"
	SelAccountType    = "#account-type"
	SelCartTotal      = "#cart-total"
	SelCartItem       = ".cart-item"
	SelAddItem        = "#add-item-btn"
	SelClearCart      = "#clear-cart-btn"
	SelLogout         = "#logout-btn"
	SelOrderTable     = "#order-history table"
	SelAdminSection   = "#admin-section"
	SelSwagger        = "#swagger-btn"
)

// EmptyCartTotal is the cart total text of an empty cart.
const EmptyCartTotal = "Total: $0.00"

// DefaultAssertTimeout bounds how long assertions wait for the DOM to settle.
const DefaultAssertTimeout = 5 * time.Second

// AssertionError reports page state that does not match expectations.
type AssertionError struct {
	What string
	Want string
	Got  string
	Err  error
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("assertion failed: %s: want %s, got %q", e.What, e.Want, e.Got)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Base carries what every page object needs.
type Base struct {
	Page     browser.Page
	Username string
	Steps    *steps.Tracer
	name     string
}

func newBase(name string, page browser.Page, username string, tracer *steps.Tracer) Base {
	return Base{Page: page, Username: username, Steps: tracer, name: name}
}

func (b Base) step(action string, fn func() error) error {
	return b.Steps.Run(fmt.Sprintf("%s: %s", b.name, action), fn)
}

// Goto navigates to path, "/" when empty.
func (b Base) Goto(path string) error {
	if path == "" {
		path = "/"
	}
	return b.step("goto "+path, func() error { return b.Page.Goto(path) })
}

// URL returns the current page URL.
func (b Base) URL() string {
	return b.Page.URL()
}

// Content returns the page HTML.
func (b Base) Content() (string, error) {
	return b.Page.Content()
}

func (b Base) text(selector string) (string, error) {
	return b.Page.Text(selector)
}

// isVisible swallows errors: an element that cannot be inspected is not
// visible.
func (b Base) isVisible(selector string) bool {
	visible, err := b.Page.IsVisible(selector)
	return err == nil && visible
}

// waitForElement reports whether selector became visible within timeout.
func (b Base) waitForElement(selector string, timeout time.Duration) bool {
	return b.Page.WaitFor(selector, browser.StateVisible, timeout) == nil
}

// assertVisible waits for selector to become visible.
func (b Base) assertVisible(what, selector string) error {
	if err := b.Page.WaitFor(selector, browser.StateVisible, DefaultAssertTimeout); err != nil {
		return &AssertionError{What: what, Want: "visible " + selector, Got: "not visible", Err: err}
	}
	return nil
}

// assertContains waits for selector and checks its text contains want.
func (b Base) assertContains(what, selector, want string) error {
	if err := b.Page.WaitFor(selector, browser.StateVisible, DefaultAssertTimeout); err != nil {
		return &AssertionError{What: what, Want: fmt.Sprintf("text containing %q", want), Err: err}
	}
	got, err := b.text(selector)
	if err != nil {
		return &AssertionError{What: what, Want: fmt.Sprintf("text containing %q", want), Err: err}
	}
	if !strings.Contains(got, want) {
		return &AssertionError{What: what, Want: fmt.Sprintf("text containing %q", want), Got: got}
	}
	return nil
}
