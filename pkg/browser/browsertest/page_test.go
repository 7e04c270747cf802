package browsertest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/demoshop"
)

func login(t *testing.T, p *Page, user, pass string) {
	t.Helper()
	require.NoError(t, p.Goto("/"))
	require.NoError(t, p.Fill("#username", user))
	require.NoError(t, p.Fill("#password", pass))
	require.NoError(t, p.Click(`button[type="submit"]`))
}

func TestLoginStoresSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New()
	p.Clock = func() time.Time { return now }

	login(t, p, "student", "Password123")

	require.NoError(t, p.WaitFor("#dashboard-page.active", browser.StateVisible, time.Second))
	greeting, err := p.Text("#user-greeting h3")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Student User!", greeting)

	var s demoshop.Session
	require.NoError(t, json.Unmarshal([]byte(p.SessionStorage()[demoshop.SessionStorageKey]), &s))
	assert.Equal(t, "student", s.Username)
	assert.Equal(t, "token_student_1740830400000", s.Token)
	assert.Equal(t, "2025-03-01T12:30:00.000Z", s.ExpiresAt)

	count, err := p.Evaluate(browser.ScriptLoginCount)
	require.NoError(t, err)
	assert.Equal(t, float64(1), count)
}

func TestBadCredentialsShowError(t *testing.T) {
	p := New()
	login(t, p, "student", "nope")

	visible, err := p.IsVisible("#login-error")
	require.NoError(t, err)
	assert.True(t, visible)

	err = p.WaitFor("#dashboard-page.active", browser.StateVisible, time.Second)
	assert.True(t, errors.Is(err, browser.ErrTimeout))
	assert.Zero(t, p.Logins())
}

func TestPreloadAppliedOncePerTab(t *testing.T) {
	p := New()
	require.NoError(t, p.PreloadSessionStorage(map[string]string{"k": "stale"}))

	require.NoError(t, p.Goto("/"))
	assert.Equal(t, "stale", p.SessionStorage()["k"])
	assert.Equal(t, "1", p.SessionStorage()[browser.RestoreMarkerKey])

	p.SetSessionItem("k", "fresh")
	require.NoError(t, p.Reload())
	assert.Equal(t, "fresh", p.SessionStorage()["k"])
}

func TestInjectErrLeavesStorageUntouched(t *testing.T) {
	p := New()
	p.InjectErr = errors.New("QuotaExceededError")
	require.NoError(t, p.PreloadSessionStorage(map[string]string{"k": "v"}))
	require.NoError(t, p.Goto("/"))

	assert.NotContains(t, p.SessionStorage(), "k")
	assert.NotContains(t, p.SessionStorage(), browser.RestoreMarkerKey)
	got, err := p.Evaluate(browser.ScriptRestoreError)
	require.NoError(t, err)
	assert.Equal(t, "QuotaExceededError", got)

	p.InjectErr = nil
	require.NoError(t, p.Reload())
	got, err = p.Evaluate(browser.ScriptRestoreError)
	require.NoError(t, err)
	assert.Nil(t, got, "cleared with the document")
	assert.Equal(t, "v", p.SessionStorage()["k"])
}

func TestExpiredSessionDroppedOnLoad(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New()
	p.Clock = func() time.Time { return now }

	login(t, p, "testuser1", "Password123")
	now = now.Add(time.Hour)
	require.NoError(t, p.Reload())

	_, ok := p.SessionStorage()[demoshop.SessionStorageKey]
	assert.False(t, ok)
	visible, _ := p.IsVisible("#login-form")
	assert.True(t, visible)
}

func TestCartSurvivesReload(t *testing.T) {
	p := New()
	login(t, p, "testuser3", "Password123")

	require.NoError(t, p.Click("#add-item-btn"))
	require.NoError(t, p.Reload())

	total, err := p.Text("#cart-total")
	require.NoError(t, err)
	assert.NotEqual(t, "Total: $0.00", total)
	n, _ := p.Count(".cart-item")
	assert.Equal(t, 1, n)
}

func TestSaleBanner(t *testing.T) {
	p := New()
	require.NoError(t, p.Goto("/?sale=1"))
	visible, _ := p.IsVisible(browser.SaleBannerSelector)
	require.True(t, visible)

	require.NoError(t, p.Click(browser.SaleBannerActionSelector))
	require.NoError(t, p.WaitFor(browser.SaleBannerSelector, browser.StateHidden, time.Second))
}

func TestAdminSection(t *testing.T) {
	p := New()
	require.NoError(t, p.Goto("/"))
	require.NoError(t, p.Click("#admin-login-btn"))

	role, _ := p.Text("#account-type")
	assert.Equal(t, "ADMIN", role)
	visible, _ := p.IsVisible("#admin-section")
	assert.True(t, visible)
}
