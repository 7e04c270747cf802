// Package browsertest provides an in-memory browser.Page that behaves like
// the demo shop front-end, for tests that should not launch Chromium.
package browsertest

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/demoshop"
)

// BaseURL is the origin fake pages pretend to be served from.
const BaseURL = "http://localhost:3000"

const (
	viewLogin     = "login"
	viewDashboard = "dashboard"
	viewDocs      = "docs"
)

// Page is a single fake tab. Session storage lives as long as the Page,
// like a real tab's; everything else resets on navigation.
type Page struct {
	mu sync.Mutex

	// Clock supplies the time used to issue and expire sessions
	Clock func() time.Time

	// Users the fake front-end accepts
	Users []accounts.Account

	// PreloadErr, when set, is returned by PreloadSessionStorage
	PreloadErr error

	// InjectErr, when set, makes the registered preload throw inside the
	// page on load, leaving session storage untouched
	InjectErr error

	// LoginHangs makes the submit button do nothing
	LoginHangs bool

	// NoGreeting renders the dashboard without the greeting heading
	NoGreeting bool

	// OverlayHandlers dismisses the sale banner before every action and
	// wait, the way installed locator handlers do
	OverlayHandlers bool

	url        string
	storage    map[string]string
	preload    map[string]string
	view       string
	form       map[string]string
	user       *demoshop.Session
	cart       []demoshop.Item
	loginCount int
	loginError string
	restoreErr string
	saleBanner bool
	nextItem   int

	navigations []string
	logins      int
	preloads    int
}

var _ browser.Page = (*Page)(nil)

// New creates a blank fake tab accepting the default account pool.
func New() *Page {
	return &Page{
		Clock:   time.Now,
		Users:   accounts.DefaultPool(),
		url:     "about:blank",
		storage: make(map[string]string),
		form:    make(map[string]string),
	}
}

// Goto navigates to path and runs the front-end startup logic.
func (p *Page) Goto(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		p.url = path
	} else {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		p.url = BaseURL + path
	}
	p.navigations = append(p.navigations, p.url)
	p.load()
	return nil
}

// Reload re-runs the front-end startup logic on the current URL.
func (p *Page) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.url == "about:blank" {
		return nil
	}
	p.navigations = append(p.navigations, p.url)
	p.load()
	return nil
}

// load mirrors what happens when a document loads: init scripts first,
// then the app reads its session from storage.
func (p *Page) load() {
	p.restoreErr = ""
	if p.preload != nil {
		if _, applied := p.storage[browser.RestoreMarkerKey]; !applied {
			if p.InjectErr != nil {
				p.restoreErr = p.InjectErr.Error()
			} else {
				for k, v := range p.preload {
					p.storage[k] = v
				}
				p.storage[browser.RestoreMarkerKey] = "1"
			}
		}
	}

	p.loginCount = 0
	p.loginError = ""
	p.form = make(map[string]string)
	p.saleBanner = strings.Contains(p.url, "sale=1")
	p.cart = nil
	if raw, ok := p.storage[demoshop.CartStorageKey]; ok {
		_ = json.Unmarshal([]byte(raw), &p.cart)
	}

	p.user = nil
	p.view = viewLogin
	if strings.HasPrefix(strings.TrimPrefix(p.url, BaseURL), "/swagger") {
		p.view = viewDocs
		p.saleBanner = false
		return
	}
	raw, ok := p.storage[demoshop.SessionStorageKey]
	if !ok {
		return
	}
	var s demoshop.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		delete(p.storage, demoshop.SessionStorageKey)
		return
	}
	expires, err := time.Parse(time.RFC3339Nano, s.ExpiresAt)
	if err != nil || !p.Clock().Before(expires) {
		delete(p.storage, demoshop.SessionStorageKey)
		return
	}
	p.user = &s
	p.view = viewDashboard
}

// URL returns the current URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Content renders the visible state as HTML.
func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	loginClass, dashClass := "page", "page"
	if p.view == viewLogin {
		loginClass += " active"
	}
	if p.view == viewDashboard {
		dashClass += " active"
	}
	var b strings.Builder
	b.WriteString("<html><head><title>Demo Shop</title></head><body>")
	fmt.Fprintf(&b, `<section id="login-page" class="%s"><form id="login-form">`, loginClass)
	fmt.Fprintf(&b, `<input id="username" type="text" value="%s">`, html.EscapeString(p.form["#username"]))
	b.WriteString(`<input id="password" type="password"><button type="submit">Login</button></form>`)
	if p.loginError != "" {
		fmt.Fprintf(&b, `<div id="login-error">%s</div>`, html.EscapeString(p.loginError))
	}
	fmt.Fprintf(&b, `</section><section id="dashboard-page" class="%s">`, dashClass)
	if p.user != nil {
		fmt.Fprintf(&b, `<div id="user-greeting"><h3>%s</h3></div>`, html.EscapeString(p.greeting()))
	}
	b.WriteString("</section></body></html>")
	return b.String(), nil
}

// Fill types value into an input on the login form.
func (p *Page) Fill(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runHandlers()

	switch selector {
	case "#username", "#password":
		if p.view != viewLogin {
			return fmt.Errorf("fill %s: element not visible: %w", selector, browser.ErrTimeout)
		}
		p.form[selector] = value
		return nil
	}
	return fmt.Errorf("fill %s: %w", selector, browser.ErrNotFound)
}

// Click performs the front-end action bound to selector.
func (p *Page) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runHandlers()

	if !p.visible(selector) {
		return fmt.Errorf("click %s: element not visible: %w", selector, browser.ErrTimeout)
	}

	switch selector {
	case `button[type="submit"]`:
		if !p.LoginHangs {
			p.submit(p.form["#username"], p.form["#password"])
		}
	case "#admin-login-btn":
		if admin, ok := accounts.Find(p.Users, "admin"); ok {
			p.submit(admin.Username, admin.Password)
		}
	case "#add-item-btn":
		item := demoshop.Catalog[p.nextItem%len(demoshop.Catalog)]
		p.nextItem++
		item.ID = p.Clock().UnixNano()
		p.cart = append(p.cart, item)
		p.saveCart()
	case "#clear-cart-btn":
		p.cart = nil
		p.saveCart()
	case "#logout-btn":
		p.saveCart()
		delete(p.storage, demoshop.SessionStorageKey)
		p.user = nil
		p.cart = nil
		p.view = viewLogin
	case browser.SaleBannerSelector, browser.SaleBannerActionSelector:
		p.saleBanner = false
	}
	return nil
}

func (p *Page) runHandlers() {
	if p.OverlayHandlers {
		p.saleBanner = false
	}
}

func (p *Page) submit(username, password string) {
	acct, ok := accounts.Find(p.Users, username)
	if !ok || acct.Password != password {
		p.loginError = "Invalid username or password"
		return
	}

	s := demoshop.NewSession(acct, p.Clock(), demoshop.SessionTTL)
	data, _ := json.Marshal(s)
	p.storage[demoshop.SessionStorageKey] = string(data)
	p.user = &s
	p.view = viewDashboard
	p.loginError = ""
	p.loginCount++
	p.logins++
}

func (p *Page) saveCart() {
	data, _ := json.Marshal(p.cart)
	p.storage[demoshop.CartStorageKey] = string(data)
}

func (p *Page) greeting() string {
	if p.user == nil || p.NoGreeting {
		return ""
	}
	return fmt.Sprintf("Hello, %s!", p.user.Name)
}

// Text returns the rendered text of a known element.
func (p *Page) Text(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch selector {
	case "#user-greeting h3":
		return p.greeting(), nil
	case "#account-type":
		if p.user == nil {
			return "", nil
		}
		return strings.ToUpper(p.user.Role), nil
	case "#cart-total":
		return fmt.Sprintf("Total: $%.2f", demoshop.CartTotal(p.cart)), nil
	case "#login-error":
		return p.loginError, nil
	case "#api-title":
		if p.view != viewDocs {
			return "", fmt.Errorf("text %s: %w", selector, browser.ErrNotFound)
		}
		return demoshop.APITitle, nil
	case "#dashboard-page":
		if p.user == nil {
			return "", nil
		}
		return fmt.Sprintf("%s Shopping Cart Order History", p.greeting()), nil
	case "#user-info":
		if p.user == nil {
			return "", nil
		}
		return fmt.Sprintf("Welcome, %s (%s)", p.user.Name, p.user.Role), nil
	}
	return "", fmt.Errorf("text %s: %w", selector, browser.ErrNotFound)
}

// IsVisible reports whether selector would be visible.
func (p *Page) IsVisible(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible(selector), nil
}

func (p *Page) visible(selector string) bool {
	dashboard := p.view == viewDashboard
	switch selector {
	case "#login-form", "#username", "#password", `button[type="submit"]`, "#admin-login-btn":
		return p.view == viewLogin
	case "#dashboard-page", "#dashboard-page.active", "#add-item-btn", "#clear-cart-btn", "#logout-btn", "#cart-total", "#account-type":
		return dashboard
	case "#user-greeting h3":
		return dashboard && !p.NoGreeting
	case "#order-history table":
		return dashboard && len(demoshop.OrdersFor(accounts.Role(p.user.Role))) > 0
	case ".cart-item":
		return dashboard && len(p.cart) > 0
	case "#admin-section", "#swagger-btn":
		return dashboard && p.user.Role == string(accounts.RoleAdmin)
	case "#login-error":
		return p.loginError != ""
	case browser.SaleBannerSelector, browser.SaleBannerActionSelector:
		return p.saleBanner
	case "#api-title", "#api-operations":
		return p.view == viewDocs
	case "body":
		return true
	}
	return false
}

// Count returns 1 per visible known element, or the cart size.
func (p *Page) Count(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if selector == ".cart-item" {
		return len(p.cart), nil
	}
	if p.visible(selector) {
		return 1, nil
	}
	return 0, nil
}

// WaitFor checks the condition once; the fake never changes on its own, so
// an unmet condition is an immediate timeout.
func (p *Page) WaitFor(selector string, state browser.State, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runHandlers()

	visible := p.visible(selector)
	switch state {
	case browser.StateHidden, browser.StateDetached:
		if !visible {
			return nil
		}
	default:
		if visible {
			return nil
		}
	}
	return fmt.Errorf("wait for %s to be %s (%s): %w", selector, state, timeout, browser.ErrTimeout)
}

// Evaluate understands the scripts the harness sends.
func (p *Page) Evaluate(script string, args ...interface{}) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch script {
	case browser.ScriptReadSessionStorage:
		out := make(map[string]interface{}, len(p.storage))
		for k, v := range p.storage {
			out[k] = v
		}
		return out, nil
	case browser.ScriptReadSessionItem:
		if len(args) != 1 {
			return nil, fmt.Errorf("evaluate: expected one argument")
		}
		key, _ := args[0].(string)
		if v, ok := p.storage[key]; ok {
			return v, nil
		}
		return nil, nil
	case browser.ScriptLoginCount:
		return float64(p.loginCount), nil
	case browser.ScriptRestoreError:
		if p.restoreErr == "" {
			return nil, nil
		}
		return p.restoreErr, nil
	}
	return nil, fmt.Errorf("evaluate: unsupported script %q", script)
}

// PreloadSessionStorage stores items to seed on the next navigation.
func (p *Page) PreloadSessionStorage(items map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.PreloadErr != nil {
		return p.PreloadErr
	}
	p.preloads++
	p.preload = make(map[string]string, len(items))
	for k, v := range items {
		p.preload[k] = v
	}
	return nil
}

// Screenshot returns a placeholder image.
func (p *Page) Screenshot() ([]byte, error) {
	return []byte("\x89PNG fake"), nil
}

// SessionStorage returns a copy of the tab's session storage.
func (p *Page) SessionStorage() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]string, len(p.storage))
	for k, v := range p.storage {
		out[k] = v
	}
	return out
}

// SetSessionItem writes directly into session storage.
func (p *Page) SetSessionItem(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage[key] = value
}

// Logins counts successful form logins over the page's lifetime.
func (p *Page) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// Preloads counts PreloadSessionStorage calls.
func (p *Page) Preloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preloads
}

// Navigations lists every URL loaded, reloads included.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}
