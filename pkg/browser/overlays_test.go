package browser

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/logging"
)

// fakeOverlay hides after hideAfter clicks.
type fakeOverlay struct {
	clicks    int
	hideAfter int
	waits     []time.Duration
}

func (f *fakeOverlay) ForceClick() error {
	f.clicks++
	return nil
}

func (f *fakeOverlay) WaitHidden(timeout time.Duration) error {
	f.waits = append(f.waits, timeout)
	if f.hideAfter > 0 && f.clicks >= f.hideAfter {
		return nil
	}
	return ErrTimeout
}

func (f *fakeOverlay) IsVisible() (bool, error) {
	return f.hideAfter == 0 || f.clicks < f.hideAfter, nil
}

func TestDismiss(t *testing.T) {
	opts := DefaultOverlayOptions()

	tests := []struct {
		name       string
		hideAfter  int
		wantClicks int
		wantWaits  []time.Duration
		wantLog    string
	}{
		{
			name:       "hidden after first click",
			hideAfter:  1,
			wantClicks: 1,
			wantWaits:  []time.Duration{opts.HideTimeout},
			wantLog:    "overlay hidden after click",
		},
		{
			name:       "hidden after retry",
			hideAfter:  2,
			wantClicks: 2,
			wantWaits:  []time.Duration{opts.HideTimeout, opts.RetryTimeout},
			wantLog:    "overlay hidden after second click",
		},
		{
			name:       "never hides",
			hideAfter:  0,
			wantClicks: 2,
			wantWaits:  []time.Duration{opts.HideTimeout, opts.RetryTimeout},
			wantLog:    "failed to hide overlay after second attempt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			target := &fakeOverlay{hideAfter: tt.hideAfter}

			Dismiss(target, "Sale Banner", opts, logging.New("overlays", &buf))

			assert.Equal(t, tt.wantClicks, target.clicks)
			assert.Equal(t, tt.wantWaits, target.waits)
			assert.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestWaitSkeleton(t *testing.T) {
	opts := DefaultOverlayOptions()

	require.NoError(t, WaitSkeleton(&fakeOverlay{hideAfter: 1, clicks: 1}, opts, logging.Discard("overlays")))

	stuck := &fakeOverlay{}
	err := WaitSkeleton(stuck, opts, logging.Discard("overlays"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "40s")
	assert.Equal(t, []time.Duration{40 * time.Second}, stuck.waits)
}

func TestOverlayHandlersKeepFirstError(t *testing.T) {
	h := &OverlayHandlers{}
	assert.NoError(t, h.Err())

	first := errors.New("first")
	h.fail(first)
	h.fail(errors.New("second"))
	assert.Equal(t, first, h.Err())
}
