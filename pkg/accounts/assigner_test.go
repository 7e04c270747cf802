package accounts

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/entrhq/authcache/pkg/logging"
)

func TestDefaultPool(t *testing.T) {
	pool := DefaultPool()
	require.Len(t, pool, 6)
	assert.Equal(t, []string{"admin", "student", "testuser1", "testuser2", "testuser3", "testuser4"}, Usernames(pool))

	// mutating the copy must not leak into later calls
	pool[0].Username = "mallory"
	assert.Equal(t, "admin", DefaultPool()[0].Username)
}

func TestAssignRoundRobin(t *testing.T) {
	a := NewAssigner(DefaultPool(), nil)

	tests := []struct {
		worker int
		want   string
	}{
		{0, "admin"},
		{1, "student"},
		{5, "testuser4"},
		{6, "admin"},
		{7, "student"},
		{-1, "testuser4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Assign(tt.worker).Username, "worker %d", tt.worker)
	}
}

func TestAssignMemoizedAndLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	a := NewAssigner(DefaultPool(), logging.New("accounts", &buf))

	first := a.Assign(3)
	second := a.Assign(3)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(buf.String(), "worker 3 assigned to testuser2"))
}

func TestAssignConcurrent(t *testing.T) {
	a := NewAssigner(DefaultPool(), nil)

	var wg sync.WaitGroup
	results := make([]Account, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Assign(i % 4)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, a.Assign(i%4), got)
	}
}

func TestNewAssignerEmptyPoolPanics(t *testing.T) {
	assert.Panics(t, func() { NewAssigner(nil, nil) })
}

func TestAssignDependsOnlyOnModulus(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := DefaultPool()
		n := len(pool)
		w1 := rapid.IntRange(-1000, 1000).Draw(t, "w1")
		k := rapid.IntRange(-50, 50).Draw(t, "k")
		w2 := w1 + k*n

		a := NewAssigner(pool, nil)
		if a.Assign(w1).Username != a.Assign(w2).Username {
			t.Fatalf("workers %d and %d share a residue mod %d but got different accounts", w1, w2, n)
		}
	})
}

func TestFind(t *testing.T) {
	acct, ok := Find(DefaultPool(), "testuser3")
	require.True(t, ok)
	assert.Equal(t, RoleVIP, acct.Role)
	assert.Equal(t, "VIP User 3", acct.DisplayName)

	_, ok = Find(DefaultPool(), "nobody")
	assert.False(t, ok)
}
