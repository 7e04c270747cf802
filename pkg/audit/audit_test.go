package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLog(t *testing.T, runID string) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), ".auth"), runID, WithClock(func() time.Time { return fixedNow }))
}

func TestStatsOnMissingLog(t *testing.T) {
	l := newLog(t, "run-1")

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Empty(t, stats.Records)

	_, err = os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLogAndStats(t *testing.T) {
	l := newLog(t, "run-1")

	require.NoError(t, l.Log(Record{Username: "student", Approach: ApproachFresh, TestName: "a", WorkerID: 1, Action: ActionLogin}))
	require.NoError(t, l.Log(Record{Username: "student", Approach: ApproachReuse, TestName: "b", WorkerID: 1, Action: ActionReuse}))
	require.NoError(t, l.Log(Record{Username: "admin", Approach: ApproachReuse, TestName: "c", WorkerID: 0, Action: ActionLogin}))

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ReuseCount)
	assert.Equal(t, 1, stats.FreshCount)
	assert.Equal(t, 2, stats.Logins())
	assert.Equal(t, 1, stats.Reuses())

	require.Len(t, stats.Records, 3)
	assert.Equal(t, "b", stats.Records[1].TestName)
	assert.True(t, stats.Records[0].Timestamp.Equal(fixedNow))
}

func TestClearOncePerRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".auth")
	l := New(dir, "run-1")

	require.NoError(t, l.Log(Record{Username: "student", Approach: ApproachFresh, Action: ActionLogin}))

	// first clear of the run empties the log
	require.NoError(t, l.Clear())
	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	// a second clear in the same run, from another process, keeps records
	// written in between
	require.NoError(t, l.Log(Record{Username: "testuser1", Approach: ApproachReuse, Action: ActionLogin}))
	other := New(dir, "run-1")
	require.NoError(t, other.Clear())

	stats, err = l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)

	// a new run clears again
	require.NoError(t, New(dir, "run-2").Clear())
	stats, err = l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestClearTwiceInARow(t *testing.T) {
	l := newLog(t, "run-1")
	require.NoError(t, l.Log(Record{Username: "student", Approach: ApproachFresh, Action: ActionLogin}))

	require.NoError(t, l.Clear())
	require.NoError(t, l.Clear())

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestClearWithoutRunIDAlwaysClears(t *testing.T) {
	l := newLog(t, "")

	require.NoError(t, l.Clear())
	require.NoError(t, l.Log(Record{Username: "student", Approach: ApproachFresh, Action: ActionLogin}))
	require.NoError(t, l.Clear())

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestConcurrentWritersKeepEveryRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".auth")
	const writers, perWriter = 8, 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// separate Log values share only the file, like separate workers
			l := New(dir, "run-1")
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, l.Log(Record{Username: "student", Approach: ApproachReuse, WorkerID: w, Action: ActionReuse}))
			}
		}(w)
	}
	wg.Wait()

	stats, err := New(dir, "run-1").Stats()
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, stats.Total)
}

func TestCorruptLog(t *testing.T) {
	l := newLog(t, "run-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path()), 0750))
	require.NoError(t, os.WriteFile(l.Path(), []byte("{not json"), 0600))

	_, err := l.Stats()
	assert.Error(t, err)
	assert.Error(t, l.Log(Record{Username: "student"}))
}
