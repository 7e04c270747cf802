package snapshot

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/browser/browsertest"
)

func TestRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), ".auth"), nil)

	// capture from a logged-in tab
	source := browsertest.New()
	require.NoError(t, source.Goto("/"))
	require.NoError(t, source.Fill("#username", "student"))
	require.NoError(t, source.Fill("#password", "Password123"))
	require.NoError(t, source.Click(`button[type="submit"]`))
	require.NoError(t, source.Click("#add-item-btn"))

	saved, err := Capture(source)
	require.NoError(t, err)
	require.NoError(t, store.Save("student", saved))

	loaded, ok, err := store.Load("student")
	require.NoError(t, err)
	require.True(t, ok)

	// replay into a fresh tab
	target := browsertest.New()
	require.NoError(t, Restore(target, "student", loaded))
	require.NoError(t, target.Goto("/"))

	captured, err := Capture(target)
	require.NoError(t, err)
	if diff := cmp.Diff(saved, captured); diff != "" {
		t.Errorf("capture after restore mismatch (-saved +captured):\n%s", diff)
	}
}

func TestCaptureDoesNotMutate(t *testing.T) {
	page := browsertest.New()
	page.SetSessionItem("k", "v")

	_, err := Capture(page)
	require.NoError(t, err)
	_, err = Capture(page)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"k": "v"}, page.SessionStorage())
}

func TestCaptureExcludesMarker(t *testing.T) {
	page := browsertest.New()
	require.NoError(t, Restore(page, "student", Snapshot{"k": "v"}))
	require.NoError(t, page.Goto("/"))

	require.Contains(t, page.SessionStorage(), browser.RestoreMarkerKey)
	got, err := Capture(page)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"k": "v"}, got)
}

func TestRestoreInjectionError(t *testing.T) {
	page := browsertest.New()
	cause := errors.New("target closed")
	page.PreloadErr = cause

	err := Restore(page, "student", Snapshot{"k": "v"})
	var injErr *InjectionError
	require.True(t, errors.As(err, &injErr))
	assert.Equal(t, "student", injErr.Username)
	assert.True(t, errors.Is(err, cause))
}

func TestCheckRestored(t *testing.T) {
	tests := []struct {
		name      string
		restore   bool
		injectErr error
		wantErr   string
	}{
		{name: "nothing restored"},
		{name: "restored", restore: true},
		{name: "preload threw in page", restore: true, injectErr: errors.New("QuotaExceededError"), wantErr: "QuotaExceededError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.New()
			page.InjectErr = tt.injectErr
			if tt.restore {
				require.NoError(t, Restore(page, "student", Snapshot{"k": "v"}))
			}
			require.NoError(t, page.Goto("/"))

			err := CheckRestored(page, "student")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var injErr *InjectionError
			require.True(t, errors.As(err, &injErr), "got %v", err)
			assert.Equal(t, "student", injErr.Username)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
