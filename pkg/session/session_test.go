package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/entrhq/authcache/pkg/browser/browsertest"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fataler interface {
	Fatal(args ...interface{})
}

func payload(t fataler, s Session) string {
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestValidate(t *testing.T) {
	good := Session{
		Username:  "student",
		Token:     "token_student_1",
		ExpiresAt: base.Add(time.Hour).Format("2006-01-02T15:04:05.000Z07:00"),
	}

	tests := []struct {
		name    string
		raw     string
		want    error
		wantNil bool
	}{
		{name: "valid", raw: payload(t, good), wantNil: true},
		{name: "missing", raw: "", want: ErrMissing},
		{name: "malformed", raw: "{", want: ErrMalformed},
		{name: "other user", raw: payload(t, Session{Username: "admin", Token: "t", ExpiresAt: good.ExpiresAt}), want: ErrWrongUser},
		{name: "no token", raw: payload(t, Session{Username: "student", ExpiresAt: good.ExpiresAt}), want: ErrNoToken},
		{name: "bad expiry", raw: payload(t, Session{Username: "student", Token: "t", ExpiresAt: "tomorrow"}), want: ErrBadExpiry},
		{name: "expired an hour ago", raw: payload(t, Session{Username: "student", Token: "t", ExpiresAt: base.Add(-time.Hour).Format(time.RFC3339)}), want: ErrExpired},
		{name: "expires exactly now", raw: payload(t, Session{Username: "student", Token: "t", ExpiresAt: base.Format(time.RFC3339)}), want: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.raw, "student", base)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestValidityMonotonicInTime(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ttl := time.Duration(rapid.Int64Range(1, int64(48*time.Hour/time.Millisecond)).Draw(t, "ttlMillis")) * time.Millisecond
		later := time.Duration(rapid.Int64Range(0, int64(72*time.Hour/time.Second)).Draw(t, "laterSeconds")) * time.Second

		raw := payload(t, Session{
			Username:  "student",
			Token:     "token_student_1",
			ExpiresAt: base.Add(ttl).Format(time.RFC3339Nano),
		})

		if Validate(raw, "student", base) != nil {
			t.Fatalf("session with ttl %s should be valid at issue time", ttl)
		}
		if Validate(raw, "student", base.Add(ttl+later)) == nil {
			t.Fatalf("session with ttl %s still valid %s after expiry", ttl, later)
		}
	})
}

func TestValidOneSecondThenInvalid(t *testing.T) {
	raw := payload(t, Session{Username: "student", Token: "t", ExpiresAt: base.Add(time.Second).Format(time.RFC3339)})
	assert.NoError(t, Validate(raw, "student", base))
	assert.Error(t, Validate(raw, "student", base.Add(2*time.Second)))
}

func TestCheckerIsValid(t *testing.T) {
	now := base
	page := browsertest.New()
	page.Clock = func() time.Time { return now }

	require.NoError(t, page.Goto("/"))
	require.NoError(t, page.Fill("#username", "testuser2"))
	require.NoError(t, page.Fill("#password", "Password123"))
	require.NoError(t, page.Click(`button[type="submit"]`))

	checker := NewChecker(func() time.Time { return now }, nil)
	assert.True(t, checker.IsValid(page, "testuser2"))
	assert.False(t, checker.IsValid(page, "testuser3"))

	now = now.Add(31 * time.Minute)
	assert.False(t, checker.IsValid(page, "testuser2"))
}

func TestCheckerNoSession(t *testing.T) {
	page := browsertest.New()
	require.NoError(t, page.Goto("/"))
	assert.False(t, NewChecker(nil, nil).IsValid(page, "student"))
}

func TestCheckerCorruptEntry(t *testing.T) {
	page := browsertest.New()
	page.SetSessionItem(StorageKey, "{not json")
	assert.False(t, NewChecker(nil, nil).IsValid(page, "student"))
}

func TestRead(t *testing.T) {
	page := browsertest.New()
	_, ok, err := Read(page)
	require.NoError(t, err)
	assert.False(t, ok)

	page.SetSessionItem(StorageKey, `{"username":"admin","token":"x"}`)
	s, ok, err := Read(page)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", s.Username)
}
