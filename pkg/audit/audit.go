// Package audit records every authentication the harness performs in a
// shared JSON log, for reuse-versus-fresh statistics.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/entrhq/authcache/pkg/jsonfile"
	"github.com/entrhq/authcache/pkg/logging"
)

// FileName is the log file inside the cache directory.
const FileName = "login-log.json"

// Approach is the fixture strategy a test asked for.
type Approach string

const (
	ApproachReuse Approach = "reuse"
	ApproachFresh Approach = "fresh"
)

// Action is what actually happened.
type Action string

const (
	ActionLogin Action = "login"
	ActionReuse Action = "reuse"
)

// Record is one authentication event.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Approach  Approach  `json:"approach"`
	TestName  string    `json:"testName"`
	WorkerID  int       `json:"workerId"`
	Action    Action    `json:"action"`
}

// Stats aggregates the log by approach.
type Stats struct {
	ReuseCount int      `json:"reuseCount"`
	FreshCount int      `json:"freshCount"`
	Total      int      `json:"total"`
	Records    []Record `json:"records"`
}

// Logins counts records whose action was a form login.
func (s Stats) Logins() int {
	n := 0
	for _, r := range s.Records {
		if r.Action == ActionLogin {
			n++
		}
	}
	return n
}

// Reuses counts records whose action was a session reuse.
func (s Stats) Reuses() int {
	return s.Total - s.Logins()
}

type document struct {
	Logins []Record `json:"logins"`

	// ClearedRun is the run that last cleared the log
	ClearedRun string `json:"clearedRun,omitempty"`
}

// Log is the shared audit log. Every read-modify-write holds an advisory
// file lock so parallel worker processes cannot lose each other's records.
type Log struct {
	mu       sync.Mutex
	path     string
	lockPath string
	runID    string
	now      func() time.Time
	logger   *logging.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New opens the log in dir. runID identifies the current test run: Clear
// resets the log at most once per run ID.
func New(dir, runID string, opts ...Option) *Log {
	path := filepath.Join(dir, FileName)
	l := &Log{
		path:     path,
		lockPath: path + ".lock",
		runID:    runID,
		now:      time.Now,
		logger:   logging.Discard("audit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Log appends rec, stamping it with the current time. The log file is
// created on first use.
func (l *Log) Log(rec Record) error {
	return l.update(func(doc *document) bool {
		rec.Timestamp = l.now().UTC()
		doc.Logins = append(doc.Logins, rec)
		return true
	})
}

// Clear empties the log. Only the first Clear of a run has any effect;
// later calls with the same run ID leave records written since in place.
func (l *Log) Clear() error {
	return l.update(func(doc *document) bool {
		if l.runID != "" && doc.ClearedRun == l.runID {
			l.logger.Debugf("audit log already cleared in run %s", l.runID)
			return false
		}
		l.logger.Infof("clearing audit log (%d records)", len(doc.Logins))
		doc.Logins = []Record{}
		doc.ClearedRun = l.runID
		return true
	})
}

// Stats reads the log and aggregates it.
func (l *Log) Stats() (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Records: []Record{}}

	if _, err := os.Stat(filepath.Dir(l.path)); os.IsNotExist(err) {
		return stats, nil
	}

	lock := flock.New(l.lockPath)
	if err := lock.RLock(); err != nil {
		return Stats{}, fmt.Errorf("failed to lock audit log: %w", err)
	}
	defer lock.Unlock()

	doc, err := l.read()
	if err != nil {
		return Stats{}, err
	}

	for _, r := range doc.Logins {
		switch r.Approach {
		case ApproachReuse:
			stats.ReuseCount++
		case ApproachFresh:
			stats.FreshCount++
		}
	}
	stats.Total = len(doc.Logins)
	stats.Records = append(stats.Records, doc.Logins...)
	return stats, nil
}

// update runs fn on the current document under the file lock and writes
// the result back when fn reports a change.
func (l *Log) update(fn func(doc *document) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	lock := flock.New(l.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock audit log: %w", err)
	}
	defer lock.Unlock()

	doc, err := l.read()
	if err != nil {
		return err
	}
	if !fn(&doc) {
		return nil
	}
	if err := jsonfile.Write(l.path, doc); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (l *Log) read() (document, error) {
	doc := document{Logins: []Record{}}
	found, err := jsonfile.Read(l.path, &doc)
	if !found {
		return document{Logins: []Record{}}, err
	}
	if err != nil {
		return document{}, fmt.Errorf("corrupt audit log %s: %w", l.path, err)
	}
	if doc.Logins == nil {
		doc.Logins = []Record{}
	}
	return doc, nil
}
