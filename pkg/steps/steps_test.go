package steps

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/authcache/pkg/logging"
)

func TestRunRecordsSteps(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracer("LoginPage", logging.New("steps", &buf))

	require.NoError(t, tr.Run("navigate", func() error { return nil }))
	boom := errors.New("boom")
	err := tr.Run("submit", func() error { return boom })
	assert.Equal(t, boom, err)

	got := tr.Steps()
	require.Len(t, got, 2)
	assert.Equal(t, "[LoginPage] navigate", got[0].Name)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, "[LoginPage] submit", got[1].Name)
	assert.Equal(t, "boom", got[1].Error)

	assert.Contains(t, buf.String(), "step: [LoginPage] navigate")
	assert.Contains(t, buf.String(), "step failed: [LoginPage] submit: boom")
}

func TestValue(t *testing.T) {
	tr := NewTracer("", nil)

	v, err := Value(tr, "read total", func() (string, error) { return "Total: $0.00", nil })
	require.NoError(t, err)
	assert.Equal(t, "Total: $0.00", v)
	assert.Equal(t, "read total", tr.Steps()[0].Name)
}

func TestNilTracer(t *testing.T) {
	var tr *Tracer
	called := false
	require.NoError(t, tr.Run("x", func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Nil(t, tr.Steps())

	n, err := Value(tr, "n", func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
