package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/authcache/pkg/logging"
)

// Selectors of the overlays the shop can put over the page.
const (
	SaleBannerSelector       = "#saleBanner"
	SaleBannerActionSelector = ".sale-banner-action"
	SkeletonSelector         = `[data-role="game-skelet-block"]`
)

// OverlayOptions bounds every wait an overlay handler performs.
type OverlayOptions struct {
	// HideTimeout is how long to wait for an overlay to hide after a click
	HideTimeout time.Duration

	// RetryTimeout is the wait after the second click
	RetryTimeout time.Duration

	// SkeletonTimeout is how long a skeleton loader may stay on screen
	SkeletonTimeout time.Duration
}

// DefaultOverlayOptions returns the standard overlay timeouts.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		HideTimeout:     5 * time.Second,
		RetryTimeout:    4 * time.Second,
		SkeletonTimeout: 40 * time.Second,
	}
}

// Dismissible is an overlay element that can be clicked away.
type Dismissible interface {
	ForceClick() error
	WaitHidden(timeout time.Duration) error
	IsVisible() (bool, error)
}

// Dismiss force-clicks target and waits for it to hide. If it is still
// visible the click is retried once. Failures are logged, never returned:
// an overlay that refuses to close surfaces later as a failed assertion.
func Dismiss(target Dismissible, name string, opts OverlayOptions, logger *logging.Logger) {
	logger.Infof("[%s]: found overlay visible, clicking it", name)
	if err := target.ForceClick(); err != nil {
		logger.Warnf("[%s]: click failed: %v", name, err)
	}

	err := target.WaitHidden(opts.HideTimeout)
	if err == nil {
		logger.Infof("[%s]: overlay hidden after click", name)
		return
	}
	logger.Warnf("[%s]: overlay still visible after click: %v", name, err)

	visible, verr := target.IsVisible()
	if verr != nil || !visible {
		return
	}
	if err := target.ForceClick(); err != nil {
		logger.Warnf("[%s]: second click failed: %v", name, err)
		return
	}
	if err := target.WaitHidden(opts.RetryTimeout); err != nil {
		logger.Warnf("[%s]: failed to hide overlay after second attempt: %v", name, err)
		return
	}
	logger.Infof("[%s]: overlay hidden after second click", name)
}

// WaitSkeleton waits for a skeleton loader to disappear.
func WaitSkeleton(target Dismissible, opts OverlayOptions, logger *logging.Logger) error {
	start := time.Now()
	if err := target.WaitHidden(opts.SkeletonTimeout); err != nil {
		return fmt.Errorf("skeleton did not disappear within %s (elapsed %s): %w",
			opts.SkeletonTimeout, time.Since(start).Round(time.Millisecond), err)
	}
	logger.Infof("[SkeletonLoader]: skeleton hidden (took %s)", time.Since(start).Round(time.Millisecond))
	return nil
}

// OverlayHandlers tracks the handlers installed on one session. A skeleton
// that never hides cannot fail the test from inside the handler, so the
// error is kept for the runner to check.
type OverlayHandlers struct {
	mu  sync.Mutex
	err error
}

// Err returns the first handler failure, if any.
func (h *OverlayHandlers) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *OverlayHandlers) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// InstallOverlayHandlers registers Playwright locator handlers for the sale
// banner and the skeleton loader on s.
func InstallOverlayHandlers(s *Session, opts OverlayOptions, logger *logging.Logger) (*OverlayHandlers, error) {
	h := &OverlayHandlers{}

	banner := s.Page.Locator(SaleBannerSelector)
	err := s.Page.AddLocatorHandler(banner, func(playwright.Locator) {
		action := banner.Locator(SaleBannerActionSelector)
		if n, err := action.Count(); err == nil && n > 0 {
			Dismiss(locatorTarget{action.First()}, "Sale Banner Action", opts, logger)
			return
		}
		Dismiss(locatorTarget{banner.First()}, "Sale Banner", opts, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add sale banner handler: %w", err)
	}

	skeleton := s.Page.Locator(SkeletonSelector).First()
	err = s.Page.AddLocatorHandler(skeleton, func(playwright.Locator) {
		if err := WaitSkeleton(locatorTarget{skeleton}, opts, logger); err != nil {
			logger.Errorf("[SkeletonLoader]: %v", err)
			h.fail(err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add skeleton handler: %w", err)
	}

	return h, nil
}

type locatorTarget struct {
	loc playwright.Locator
}

func (t locatorTarget) ForceClick() error {
	return t.loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)})
}

func (t locatorTarget) WaitHidden(timeout time.Duration) error {
	return t.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (t locatorTarget) IsVisible() (bool, error) {
	return t.loc.IsVisible()
}
