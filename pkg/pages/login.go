package pages

import (
	"time"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/steps"
)

// LoginPage is the shop's login form.
type LoginPage struct {
	Base
}

// NewLoginPage binds a login page object to page for username's test.
func NewLoginPage(page browser.Page, username string, tracer *steps.Tracer) *LoginPage {
	return &LoginPage{Base: newBase("LoginPage", page, username, tracer)}
}

// Navigate opens the application root, where the form lives.
func (p *LoginPage) Navigate() error {
	return p.Goto("/")
}

// Login submits credentials through the form.
func (p *LoginPage) Login(username, password string) error {
	return p.step("login as "+username, func() error {
		if err := p.Page.Fill(SelUsername, username); err != nil {
			return err
		}
		if err := p.Page.Fill(SelPassword, password); err != nil {
			return err
		}
		return p.Page.Click(SelSubmit)
	})
}

// LoginAsAdmin uses the one-click admin button.
func (p *LoginPage) LoginAsAdmin() error {
	return p.step("login via admin button", func() error {
		return p.Page.Click(SelAdminLogin)
	})
}

// WaitForLoginSuccess waits for the dashboard to become the active page.
func (p *LoginPage) WaitForLoginSuccess(timeout time.Duration) error {
	return p.step("wait for dashboard", func() error {
		return p.Page.WaitFor(SelDashboardReady, browser.StateVisible, timeout)
	})
}

// AssertLoggedIn checks the greeting shown after login.
func (p *LoginPage) AssertLoggedIn() error {
	return p.step("assert logged in", func() error {
		return p.assertContains("greeting", SelGreeting, "Hello")
	})
}

// HasLoginError reports whether the error banner appeared.
func (p *LoginPage) HasLoginError() bool {
	return p.waitForElement(SelLoginError, DefaultAssertTimeout)
}

// ErrorMessage returns the login error text.
func (p *LoginPage) ErrorMessage() (string, error) {
	return p.text(SelLoginError)
}

func (p *LoginPage) IsLoginFormVisible() bool {
	return p.isVisible(SelLoginForm)
}

func (p *LoginPage) IsUsernameFieldVisible() bool {
	return p.isVisible(SelUsername)
}

func (p *LoginPage) IsPasswordFieldVisible() bool {
	return p.isVisible(SelPassword)
}

func (p *LoginPage) IsSubmitButtonVisible() bool {
	return p.isVisible(SelSubmit)
}
