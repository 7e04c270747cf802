package snapshot

import (
	"errors"
	"fmt"

	"github.com/entrhq/authcache/pkg/browser"
)

// Restore arranges for every entry of snap to be written into the page's
// session storage before any application script runs. It must be called
// before the page's first navigation.
func Restore(page browser.Page, username string, snap Snapshot) error {
	items := make(map[string]string, len(snap))
	for k, v := range snap {
		items[k] = v
	}
	if err := page.PreloadSessionStorage(items); err != nil {
		return &InjectionError{Username: username, Err: err}
	}
	return nil
}

// CheckRestored reports a preload that threw inside the page during the
// last navigation, as *InjectionError. Call it after navigating a page
// prepared with Restore: storage left empty by a failed injection must not
// pass for an expired session.
func CheckRestored(page browser.Page, username string) error {
	result, err := page.Evaluate(browser.ScriptRestoreError)
	if err != nil {
		return fmt.Errorf("failed to read restore status for %s: %w", username, err)
	}
	if msg, ok := result.(string); ok && msg != "" {
		return &InjectionError{Username: username, Err: errors.New("in-page preload failed: " + msg)}
	}
	return nil
}

// Capture reads the page's current session storage. The restore marker is
// left out so a capture after Restore equals what was restored.
func Capture(page browser.Page) (Snapshot, error) {
	result, err := page.Evaluate(browser.ScriptReadSessionStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to read session storage: %w", err)
	}
	items, err := browser.StringMap(result)
	if err != nil {
		return nil, fmt.Errorf("failed to read session storage: %w", err)
	}
	delete(items, browser.RestoreMarkerKey)
	return Snapshot(items), nil
}
