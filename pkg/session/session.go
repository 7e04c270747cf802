// Package session decides whether a restored browser session can be reused.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/logging"
)

// StorageKey is the session storage entry the shop app keeps its session in.
const StorageKey = "session"

// Session is the app's session payload.
type Session struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	Name      string `json:"name"`
	IssuedAt  string `json:"issuedAt"`
	ExpiresAt string `json:"expiresAt"`
	LastLogin string `json:"lastLogin"`
}

var (
	ErrMissing   = errors.New("no session entry")
	ErrMalformed = errors.New("session entry is not valid JSON")
	ErrWrongUser = errors.New("session belongs to another user")
	ErrNoToken   = errors.New("session has no token")
	ErrBadExpiry = errors.New("session expiry is not a timestamp")
	ErrExpired   = errors.New("session expired")
)

// Validate checks a raw session entry against the expected username at now.
// It returns nil exactly when the session is reusable.
func Validate(raw string, username string, now time.Time) error {
	if raw == "" {
		return ErrMissing
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if s.Username != username {
		return fmt.Errorf("%w: got %q, want %q", ErrWrongUser, s.Username, username)
	}
	if s.Token == "" {
		return ErrNoToken
	}

	expires, err := time.Parse(time.RFC3339Nano, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadExpiry, s.ExpiresAt)
	}
	if !now.Before(expires) {
		return fmt.Errorf("%w at %s", ErrExpired, expires.Format(time.RFC3339))
	}
	return nil
}

// Checker evaluates validity against a live page.
type Checker struct {
	now    func() time.Time
	logger *logging.Logger
}

// NewChecker creates a Checker. now defaults to time.Now.
func NewChecker(now func() time.Time, logger *logging.Logger) *Checker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Discard("session")
	}
	return &Checker{now: now, logger: logger}
}

// IsValid reports whether page, already navigated so the app has run its
// startup logic, holds a reusable session for username. Unreadable or
// missing data is a plain false.
func (c *Checker) IsValid(page browser.Page, username string) bool {
	raw, err := readEntry(page)
	if err != nil {
		c.logger.Debugf("session for %s unreadable: %v", username, err)
		return false
	}
	if err := Validate(raw, username, c.now()); err != nil {
		c.logger.Infof("session for %s not reusable: %v", username, err)
		return false
	}
	return true
}

// Read returns the parsed session held by page, if any.
func Read(page browser.Page) (Session, bool, error) {
	raw, err := readEntry(page)
	if err != nil || raw == "" {
		return Session{}, false, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s, true, nil
}

func readEntry(page browser.Page) (string, error) {
	result, err := page.Evaluate(browser.ScriptReadSessionItem, StorageKey)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unexpected session entry type %T", result)
	}
}
