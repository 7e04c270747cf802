// Package browser drives Chromium through Playwright for the test harness.
//
// # Architecture
//
// The package is built around three pieces:
//
//  1. Page: the narrow capability set the harness consumes (navigate, fill,
//     click, read text, check visibility, wait, evaluate, preload session
//     storage). Page objects and the session cache only see this interface.
//  2. Session: one isolated browser context with a single page, implementing
//     Page over playwright-go. Each test gets a fresh Session, so session
//     storage never leaks between tests.
//  3. SessionManager: owns the Playwright driver and the shared Chromium
//     process and hands out Sessions.
//
// # Overlays
//
// InstallOverlayHandlers registers locator handlers that dismiss the sale
// banner and wait out skeleton loaders whenever they block an action.
//
// # Example Usage
//
//	manager := browser.NewSessionManager(browser.LaunchOptions{Headless: true})
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	session, err := manager.StartSession("w0-t1", browser.SessionOptions{
//	    BaseURL: "http://localhost:3000",
//	})
//	err = session.Goto("/")
//	greeting, err := session.Text("#user-greeting h3")
package browser
