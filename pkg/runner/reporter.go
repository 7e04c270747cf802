package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Verbosity controls how much the reporter prints.
type Verbosity int

const (
	// VerbosityQuiet prints failures and the final summary only
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal prints one line per finished test
	VerbosityNormal
	// VerbosityVerbose also prints test starts, retries and steps
	VerbosityVerbose
)

// ParseVerbosity converts a name into a Verbosity; unknown names mean normal.
func ParseVerbosity(name string) Verbosity {
	switch strings.ToLower(name) {
	case "quiet":
		return VerbosityQuiet
	case "verbose":
		return VerbosityVerbose
	default:
		return VerbosityNormal
	}
}

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FCD34D")
	mutedGray  = lipgloss.Color("#6B7280")
)

// Reporter prints run progress. It is safe for concurrent use by workers.
type Reporter struct {
	mu     sync.Mutex
	level  Verbosity
	writer io.Writer

	header  lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	flaky   lipgloss.Style
	muted   lipgloss.Style
	summary lipgloss.Style
}

// NewReporter creates a reporter writing to w (stdout when nil).
func NewReporter(w io.Writer, level Verbosity) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		level:   level,
		writer:  w,
		header:  r.NewStyle().Foreground(salmonPink).Bold(true),
		passed:  r.NewStyle().Foreground(mintGreen),
		failed:  r.NewStyle().Foreground(salmonPink).Bold(true),
		flaky:   r.NewStyle().Foreground(amber),
		muted:   r.NewStyle().Foreground(mutedGray),
		summary: r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(salmonPink).Padding(0, 1),
	}
}

func (r *Reporter) printf(min Verbosity, format string, args ...interface{}) {
	if r.level < min {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.writer, format, args...)
}

// RunStarted prints the run header.
func (r *Reporter) RunStarted(runID string, tests, workers int) {
	r.printf(VerbosityNormal, "\n%s\n%s\n\n",
		r.header.Render(fmt.Sprintf("Running %d tests using %d workers", tests, workers)),
		r.muted.Render("run "+runID))
}

// TestStarted prints a test start in verbose mode.
func (r *Reporter) TestStarted(workerID int, title string, attempt int) {
	suffix := ""
	if attempt > 0 {
		suffix = fmt.Sprintf(" (retry #%d)", attempt)
	}
	r.printf(VerbosityVerbose, "%s\n", r.muted.Render(fmt.Sprintf("  [worker %d] → %s%s", workerID, title, suffix)))
}

// AttemptFailed prints a failed attempt that will be retried.
func (r *Reporter) AttemptFailed(workerID int, title string, attempt int, err error) {
	r.printf(VerbosityVerbose, "%s\n", r.flaky.Render(fmt.Sprintf("  [worker %d] ↻ %s failed on attempt %d: %v", workerID, title, attempt+1, err)))
}

// TestFinished prints the final outcome of a test.
func (r *Reporter) TestFinished(res TestResult) {
	line := fmt.Sprintf("  [worker %d] %s %s (%s)", res.WorkerID, res.FullTitle(),
		r.muted.Render(res.Username), res.Duration.Round(time.Millisecond))

	switch res.Status {
	case StatusPassed:
		r.printf(VerbosityNormal, "%s%s\n", r.passed.Render("✓"), line)
	case StatusFlaky:
		r.printf(VerbosityNormal, "%s%s\n", r.flaky.Render("±"), line)
	default:
		r.printf(VerbosityQuiet, "%s%s\n    %s\n", r.failed.Render("✗"), line, r.failed.Render(res.Error()))
	}

	if r.level >= VerbosityVerbose && len(res.Attempts) > 0 {
		for _, step := range res.Attempts[len(res.Attempts)-1].Steps {
			mark := "·"
			if step.Error != "" {
				mark = "✗"
			}
			r.printf(VerbosityVerbose, "%s\n", r.muted.Render(fmt.Sprintf("      %s %s (%s)", mark, step.Name, step.Duration.Round(time.Millisecond))))
		}
	}
}

// HookFailed prints a suite hook failure.
func (r *Reporter) HookFailed(suite, hook string, err error) {
	r.printf(VerbosityQuiet, "%s\n", r.failed.Render(fmt.Sprintf("✗ %s %s: %v", suite, hook, err)))
}

// Summary prints the final tally.
func (r *Reporter) Summary(s *Summary) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", r.passed.Render(fmt.Sprintf("%d passed", s.Passed)), r.muted.Render(s.Duration.Round(time.Second).String()))
	if s.Flaky > 0 {
		fmt.Fprintf(&b, "\n%s", r.flaky.Render(fmt.Sprintf("%d flaky", s.Flaky)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, "\n%s", r.failed.Render(fmt.Sprintf("%d failed", s.Failed)))
		for _, res := range s.Results {
			if res.Status == StatusFailed {
				fmt.Fprintf(&b, "\n  %s", res.FullTitle())
			}
		}
	}
	if s.Filtered > 0 {
		fmt.Fprintf(&b, "\n%s", r.muted.Render(fmt.Sprintf("%d filtered out", s.Filtered)))
	}
	if s.Audit != nil {
		fmt.Fprintf(&b, "\n%s", r.muted.Render(fmt.Sprintf("auth: %d reused, %d form logins (%d reuse-preferred, %d fresh-only)",
			s.Audit.Reuses(), s.Audit.Logins(), s.Audit.ReuseCount, s.Audit.FreshCount)))
	}
	for _, e := range s.HookErrors {
		fmt.Fprintf(&b, "\n%s", r.failed.Render(e))
	}

	r.printf(VerbosityQuiet, "\n%s\n", r.summary.Render(b.String()))
}
