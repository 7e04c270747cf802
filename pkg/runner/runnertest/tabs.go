// Package runnertest provides a runner.TabFactory over in-memory shop
// pages, for running suites without a browser.
package runnertest

import (
	"sync"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/browser/browsertest"
	"github.com/entrhq/authcache/pkg/runner"
)

// Tabs opens browsertest pages. The zero value is ready to use.
type Tabs struct {
	// Setup, when set, customizes every new page before it is handed out
	Setup func(page *browsertest.Page)

	mu     sync.Mutex
	pages  []*browsertest.Page
	closed int
}

var _ runner.TabFactory = (*Tabs)(nil)

// OpenTab implements runner.TabFactory.
func (f *Tabs) OpenTab(_ string, opts runner.TabOptions) (runner.Tab, error) {
	page := browsertest.New()
	page.OverlayHandlers = opts.OverlayHandlers
	if f.Setup != nil {
		f.Setup(page)
	}

	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()
	return &tab{page: page, tabs: f}, nil
}

// Pages returns every page opened so far.
func (f *Tabs) Pages() []*browsertest.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*browsertest.Page(nil), f.pages...)
}

// Closed counts closed tabs.
func (f *Tabs) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Logins sums the form logins over every page opened.
func (f *Tabs) Logins() int {
	total := 0
	for _, p := range f.Pages() {
		total += p.Logins()
	}
	return total
}

type tab struct {
	page *browsertest.Page
	tabs *Tabs
	once sync.Once
}

func (t *tab) Page() browser.Page { return t.page }
func (t *tab) OverlayErr() error  { return nil }

func (t *tab) Close() error {
	t.once.Do(func() {
		t.tabs.mu.Lock()
		t.tabs.closed++
		t.tabs.mu.Unlock()
	})
	return nil
}
