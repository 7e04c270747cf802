package browser

import (
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page is the capability set the harness needs from one browser tab.
// Session implements it over Playwright; browsertest.Page implements it
// in memory for unit tests.
type Page interface {
	// Goto navigates to path, resolved against the session's base URL
	Goto(path string) error

	// Reload reloads the current document
	Reload() error

	// URL returns the current page URL
	URL() string

	// Content returns the serialized DOM
	Content() (string, error)

	Fill(selector, value string) error
	Click(selector string) error

	// Text returns the text content of the first element matching selector
	Text(selector string) (string, error)

	// IsVisible reports whether selector currently matches a visible element.
	// It does not wait.
	IsVisible(selector string) (bool, error)

	// Count returns how many elements match selector
	Count(selector string) (int, error)

	// WaitFor blocks until selector reaches state or timeout elapses.
	// A timeout is reported as an error wrapping ErrTimeout.
	WaitFor(selector string, state State, timeout time.Duration) error

	// Evaluate runs a JavaScript expression in the page
	Evaluate(script string, args ...interface{}) (interface{}, error)

	// PreloadSessionStorage arranges for items to be written into session
	// storage before any application script runs on the next navigation.
	// Items are written once per tab; RestoreMarkerKey records that they
	// were applied.
	PreloadSessionStorage(items map[string]string) error

	// Screenshot captures the viewport as PNG
	Screenshot() ([]byte, error)
}

// State is an element state to wait for.
type State string

const (
	StateAttached State = "attached"
	StateDetached State = "detached"
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
)

var (
	// ErrTimeout marks a wait that ran out of time.
	ErrTimeout = errors.New("browser: timeout")

	// ErrNotFound is returned for unknown sessions or missing elements.
	ErrNotFound = errors.New("browser: not found")
)

// Session is one isolated browser context with a single page, created per
// test so storage never leaks between tests.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Context is the browser context (isolated storage)
	Context playwright.BrowserContext

	// Page is the current active page
	Page playwright.Page

	// BaseURL is prefixed to relative navigation targets
	BaseURL string
}

// LaunchOptions configures the shared browser process.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// SlowMo slows every operation down by the given duration
	SlowMo time.Duration

	// Install downloads the driver and Chromium before starting
	Install bool
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// BaseURL of the application under test
	BaseURL string

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for actions
	Timeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for various operations
const (
	DefaultTimeout        = 25 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
)

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
