package pages

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/browser/browsertest"
	"github.com/entrhq/authcache/pkg/steps"
)

func TestLoginFlow(t *testing.T) {
	page := browsertest.New()
	tracer := steps.NewTracer("", nil)
	login := NewLoginPage(page, "student", tracer)

	require.NoError(t, login.Navigate())
	assert.True(t, login.IsLoginFormVisible())
	assert.True(t, login.IsUsernameFieldVisible())
	assert.True(t, login.IsPasswordFieldVisible())
	assert.True(t, login.IsSubmitButtonVisible())

	require.NoError(t, login.Login("student", "Password123"))
	require.NoError(t, login.WaitForLoginSuccess(10*time.Second))
	require.NoError(t, login.AssertLoggedIn())

	var names []string
	for _, s := range tracer.Steps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"LoginPage: goto /",
		"LoginPage: login as student",
		"LoginPage: wait for dashboard",
		"LoginPage: assert logged in",
	}, names)
}

func TestLoginErrorShown(t *testing.T) {
	page := browsertest.New()
	login := NewLoginPage(page, "", nil)

	require.NoError(t, login.Navigate())
	require.NoError(t, login.Login("invalid-user", "invalid-pass"))
	assert.True(t, login.HasLoginError())

	msg, err := login.ErrorMessage()
	require.NoError(t, err)
	assert.Equal(t, "Invalid username or password", msg)

	err = login.WaitForLoginSuccess(time.Second)
	assert.True(t, errors.Is(err, browser.ErrTimeout))
}

func TestAssertLoggedInFailsWithoutGreeting(t *testing.T) {
	page := browsertest.New()
	page.NoGreeting = true
	login := NewLoginPage(page, "student", nil)

	require.NoError(t, login.Navigate())
	require.NoError(t, login.Login("student", "Password123"))
	require.NoError(t, login.WaitForLoginSuccess(time.Second))

	err := login.AssertLoggedIn()
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, "greeting", assertErr.What)
}

func loggedInDashboard(t *testing.T, user, pass string) (*browsertest.Page, *DashboardPage) {
	t.Helper()
	page := browsertest.New()
	login := NewLoginPage(page, user, nil)
	require.NoError(t, login.Navigate())
	require.NoError(t, login.Login(user, pass))
	return page, NewDashboardPage(page, user, nil)
}

func TestDashboardCart(t *testing.T) {
	_, dash := loggedInDashboard(t, "testuser1", "Password123")

	require.NoError(t, dash.AssertDashboardLoaded())
	total, err := dash.CartTotal()
	require.NoError(t, err)
	assert.Equal(t, EmptyCartTotal, total)
	assert.Error(t, dash.AssertCartNotEmpty())

	require.NoError(t, dash.AddItemToCart())
	require.NoError(t, dash.AddItemToCart())
	require.NoError(t, dash.AssertCartHasItems())
	require.NoError(t, dash.AssertCartNotEmpty())

	require.NoError(t, dash.ClearCart())
	total, err = dash.CartTotal()
	require.NoError(t, err)
	assert.Equal(t, EmptyCartTotal, total)
}

func TestDashboardReloadKeepsSession(t *testing.T) {
	_, dash := loggedInDashboard(t, "testuser4", "Password123")

	require.NoError(t, dash.AddItemToCart())
	require.NoError(t, dash.Reload())
	require.NoError(t, dash.AssertSessionActive())
	require.NoError(t, dash.AssertRole("VIP"))
	require.NoError(t, dash.AssertOrderHistoryVisible())
	require.NoError(t, dash.AssertBodyNotEmpty())
	require.NoError(t, dash.AssertPageStructureValid())
}

func TestDashboardLogout(t *testing.T) {
	page, dash := loggedInDashboard(t, "student", "Password123")

	require.NoError(t, dash.Logout())
	err := dash.AssertUserIsLoggedIn()
	assert.Error(t, err)
	visible, _ := page.IsVisible(SelLoginForm)
	assert.True(t, visible)
}

func TestAdminSection(t *testing.T) {
	_, dash := loggedInDashboard(t, "admin", "AdminPass")
	require.NoError(t, dash.AssertAdminSectionVisible())

	_, student := loggedInDashboard(t, "student", "Password123")
	assert.Error(t, student.AssertAdminSectionVisible())
}

func TestLoginCount(t *testing.T) {
	_, dash := loggedInDashboard(t, "student", "Password123")
	n, err := dash.LoginCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
