// Package steps wraps test actions in named, logged, timed steps.
package steps

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/authcache/pkg/logging"
)

// Step is one completed step.
type Step struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Tracer records the steps of one test. A nil Tracer runs steps without
// recording or logging them.
type Tracer struct {
	mu     sync.Mutex
	owner  string
	logger *logging.Logger
	steps  []Step
}

// NewTracer creates a tracer whose step names are prefixed with owner.
func NewTracer(owner string, logger *logging.Logger) *Tracer {
	if logger == nil {
		logger = logging.Discard("steps")
	}
	return &Tracer{owner: owner, logger: logger}
}

// Run logs name, runs fn and records the outcome.
func (t *Tracer) Run(name string, fn func() error) error {
	if t == nil {
		return fn()
	}

	title := name
	if t.owner != "" {
		title = fmt.Sprintf("[%s] %s", t.owner, name)
	}
	t.logger.Infof("step: %s", title)

	start := time.Now()
	err := fn()
	step := Step{Name: title, Duration: time.Since(start)}
	if err != nil {
		step.Error = err.Error()
		t.logger.Warnf("step failed: %s: %v", title, err)
	}

	t.mu.Lock()
	t.steps = append(t.steps, step)
	t.mu.Unlock()
	return err
}

// Value runs a step that produces a result.
func Value[T any](t *Tracer, name string, fn func() (T, error)) (T, error) {
	var out T
	err := t.Run(name, func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

// Steps returns the steps recorded so far.
func (t *Tracer) Steps() []Step {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Step(nil), t.steps...)
}
