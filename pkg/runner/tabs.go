package runner

import (
	"fmt"
	"sync/atomic"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/logging"
)

// Tab is one isolated browser tab used by a single test attempt.
type Tab interface {
	Page() browser.Page

	// OverlayErr reports a failure inside an overlay handler, such as a
	// skeleton loader that never went away
	OverlayErr() error

	Close() error
}

// TabOptions configures a new tab.
type TabOptions struct {
	OverlayHandlers bool
}

// TabFactory opens tabs. Implementations must be safe for concurrent use.
type TabFactory interface {
	OpenTab(name string, opts TabOptions) (Tab, error)
}

// PlaywrightTabs opens tabs as fresh browser contexts of one shared
// Chromium process.
type PlaywrightTabs struct {
	manager *browser.SessionManager
	session browser.SessionOptions
	overlay browser.OverlayOptions
	logger  *logging.Logger
	seq     atomic.Int64
}

// NewPlaywrightTabs creates a factory over an initialized session manager.
func NewPlaywrightTabs(manager *browser.SessionManager, session browser.SessionOptions, overlay browser.OverlayOptions, logger *logging.Logger) *PlaywrightTabs {
	if logger == nil {
		logger = logging.Discard("tabs")
	}
	return &PlaywrightTabs{
		manager: manager,
		session: session,
		overlay: overlay,
		logger:  logger,
	}
}

// OpenTab starts a new session and installs the overlay handlers unless
// they are disabled.
func (f *PlaywrightTabs) OpenTab(name string, opts TabOptions) (Tab, error) {
	name = fmt.Sprintf("%s#%d", name, f.seq.Add(1))

	sess, err := f.manager.StartSession(name, f.session)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	tab := &playwrightTab{manager: f.manager, session: sess}
	if opts.OverlayHandlers {
		handlers, err := browser.InstallOverlayHandlers(sess, f.overlay, f.logger)
		if err != nil {
			_ = f.manager.CloseSession(name)
			return nil, err
		}
		tab.handlers = handlers
	}
	return tab, nil
}

type playwrightTab struct {
	manager  *browser.SessionManager
	session  *browser.Session
	handlers *browser.OverlayHandlers
	closed   atomic.Bool
}

func (t *playwrightTab) Page() browser.Page {
	return t.session
}

func (t *playwrightTab) OverlayErr() error {
	if t.handlers == nil {
		return nil
	}
	return t.handlers.Err()
}

func (t *playwrightTab) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.manager.CloseSession(t.session.Name)
}
