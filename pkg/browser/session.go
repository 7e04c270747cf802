package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

var _ Page = (*Session)(nil)

// Goto navigates the session's page. Relative paths resolve against the
// context base URL.
func (s *Session) Goto(path string) error {
	_, err := s.Page.Goto(path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return wrap("navigation failed", err)
	}
	return nil
}

// Reload reloads the current page.
func (s *Session) Reload() error {
	if _, err := s.Page.Reload(); err != nil {
		return wrap("reload failed", err)
	}
	return nil
}

// URL returns the current page URL.
func (s *Session) URL() string {
	return s.Page.URL()
}

// Content returns the page HTML.
func (s *Session) Content() (string, error) {
	content, err := s.Page.Content()
	if err != nil {
		return "", wrap("content failed", err)
	}
	return content, nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(selector, value string) error {
	if err := s.Page.Locator(selector).Fill(value); err != nil {
		return wrap(fmt.Sprintf("fill %s failed", selector), err)
	}
	return nil
}

// Click clicks an element matching the selector.
func (s *Session) Click(selector string) error {
	if err := s.Page.Locator(selector).First().Click(); err != nil {
		return wrap(fmt.Sprintf("click %s failed", selector), err)
	}
	return nil
}

// Text returns the text content of the first element matching selector.
func (s *Session) Text(selector string) (string, error) {
	text, err := s.Page.Locator(selector).First().TextContent()
	if err != nil {
		return "", wrap(fmt.Sprintf("text of %s failed", selector), err)
	}
	return strings.TrimSpace(text), nil
}

// IsVisible reports whether selector is visible right now.
func (s *Session) IsVisible(selector string) (bool, error) {
	visible, err := s.Page.Locator(selector).First().IsVisible()
	if err != nil {
		return false, wrap(fmt.Sprintf("visibility of %s failed", selector), err)
	}
	return visible, nil
}

// Count returns the number of elements matching selector.
func (s *Session) Count(selector string) (int, error) {
	n, err := s.Page.Locator(selector).Count()
	if err != nil {
		return 0, wrap(fmt.Sprintf("count of %s failed", selector), err)
	}
	return n, nil
}

// WaitFor waits for an element to reach state.
func (s *Session) WaitFor(selector string, state State, timeout time.Duration) error {
	if selector == "" {
		return fmt.Errorf("selector is required for wait")
	}

	playwrightOpts := playwright.PageWaitForSelectorOptions{}

	if state != "" {
		st := playwright.WaitForSelectorState(state)
		playwrightOpts.State = &st
	}

	if timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(millis(timeout))
	}

	if _, err := s.Page.WaitForSelector(selector, playwrightOpts); err != nil {
		return wrap(fmt.Sprintf("wait for %s to be %s failed", selector, state), err)
	}
	return nil
}

// Evaluate runs script in the page.
func (s *Session) Evaluate(script string, args ...interface{}) (interface{}, error) {
	result, err := s.Page.Evaluate(script, args...)
	if err != nil {
		return nil, wrap("evaluate failed", err)
	}
	return result, nil
}

// PreloadSessionStorage registers an init script that seeds session storage
// once per tab before application scripts run.
func (s *Session) PreloadSessionStorage(items map[string]string) error {
	script, err := preloadScript(items)
	if err != nil {
		return err
	}
	if err := s.Page.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return wrap("add init script failed", err)
	}
	return nil
}

// Screenshot captures the current viewport.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.Page.Screenshot()
	if err != nil {
		return nil, wrap("screenshot failed", err)
	}
	return data, nil
}

// wrap annotates err and maps Playwright timeouts onto ErrTimeout.
func wrap(msg string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", msg, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
