package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/browser/browsertest"
	"github.com/entrhq/authcache/pkg/pages"
	"github.com/entrhq/authcache/pkg/steps"
)

func account(t *testing.T, username string) accounts.Account {
	t.Helper()
	acct, ok := accounts.Find(accounts.DefaultPool(), username)
	require.True(t, ok)
	return acct
}

func TestLoginSuccess(t *testing.T) {
	page := browsertest.New()
	tracer := steps.NewTracer("", nil)
	o := NewOrchestrator(0, nil)

	require.NoError(t, o.Login(context.Background(), page, account(t, "student"), tracer))

	assert.Equal(t, DefaultTimeout, o.Timeout())
	assert.Equal(t, 1, page.Logins())
	assert.Equal(t, []string{browsertest.BaseURL + "/"}, page.Navigations())
	assert.Len(t, tracer.Steps(), 4)
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *browsertest.Page)
		acct  func(t *testing.T) accounts.Account
		check func(t *testing.T, err error)
	}{
		{
			name:  "success signal never appears",
			setup: func(p *browsertest.Page) { p.LoginHangs = true },
			acct:  func(t *testing.T) accounts.Account { return account(t, "student") },
			check: func(t *testing.T, err error) {
				var timeoutErr *TimeoutError
				require.True(t, errors.As(err, &timeoutErr), "got %v", err)
				assert.Equal(t, "student", timeoutErr.Username)
				assert.Equal(t, DefaultTimeout, timeoutErr.Timeout)
				assert.True(t, errors.Is(err, browser.ErrTimeout))
			},
		},
		{
			name:  "wrong password",
			setup: func(p *browsertest.Page) {},
			acct: func(t *testing.T) accounts.Account {
				acct := account(t, "student")
				acct.Password = "wrong"
				return acct
			},
			check: func(t *testing.T, err error) {
				var timeoutErr *TimeoutError
				assert.True(t, errors.As(err, &timeoutErr), "got %v", err)
			},
		},
		{
			name:  "greeting missing",
			setup: func(p *browsertest.Page) { p.NoGreeting = true },
			acct:  func(t *testing.T) accounts.Account { return account(t, "testuser1") },
			check: func(t *testing.T, err error) {
				var assertErr *AssertionError
				require.True(t, errors.As(err, &assertErr), "got %v", err)
				var pageErr *pages.AssertionError
				assert.True(t, errors.As(err, &pageErr))
			},
		},
		{
			name:  "greeting for another account",
			setup: func(p *browsertest.Page) {},
			acct: func(t *testing.T) accounts.Account {
				acct := account(t, "testuser1")
				acct.DisplayName = "Somebody Else"
				return acct
			},
			check: func(t *testing.T, err error) {
				var assertErr *AssertionError
				require.True(t, errors.As(err, &assertErr), "got %v", err)
				assert.Contains(t, err.Error(), "Somebody Else")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.New()
			tt.setup(page)

			err := NewOrchestrator(0, nil).Login(context.Background(), page, tt.acct(t), nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLoginCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := browsertest.New()
	err := NewOrchestrator(time.Second, nil).Login(ctx, page, account(t, "student"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Navigations())
}
