package runner

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/authcache/pkg/browser"
	"github.com/entrhq/authcache/pkg/config"
)

// Artifact file names inside the output directory.
const (
	ResultsFile = "results.json"
	SummaryFile = "summary.md"
	JUnitFile   = "junit.xml"
)

// maxDOMSnapshot bounds the condensed DOM written for a failure.
const maxDOMSnapshot = 64 * 1024

// ArtifactWriter handles writing run artifacts.
type ArtifactWriter struct {
	outputDir string
	config    config.ArtifactConfig
	markdown  bool
}

// NewArtifactWriter creates a writer. Markdown is forced on for CI runs.
func NewArtifactWriter(cfg config.ArtifactConfig, ci bool) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: cfg.OutputDir,
		config:    cfg,
		markdown:  cfg.Markdown || ci,
	}
}

// OutputDir returns where artifacts go.
func (w *ArtifactWriter) OutputDir() string {
	return w.outputDir
}

// WriteAll writes all configured report formats.
func (w *ArtifactWriter) WriteAll(summary *Summary) error {
	if !w.config.Enabled {
		return nil
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.config.JSON {
		if err := w.WriteResultsJSON(summary); err != nil {
			return err
		}
	}

	if w.markdown {
		if err := w.WriteSummaryMarkdown(summary); err != nil {
			return err
		}
	}

	if w.config.JUnit {
		if err := w.WriteJUnit(summary); err != nil {
			return err
		}
	}

	return nil
}

// WriteResultsJSON writes the full run summary as JSON.
func (w *ArtifactWriter) WriteResultsJSON(summary *Summary) error {
	path := filepath.Join(w.outputDir, ResultsFile)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write results JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary.
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *Summary) error {
	path := filepath.Join(w.outputDir, SummaryFile)

	var md strings.Builder

	md.WriteString("# E2E Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Target:** %s\n\n", summary.BaseURL))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Second)))
	md.WriteString(fmt.Sprintf("**Workers:** %d, **Retries:** %d\n\n", summary.Workers, summary.Retries))

	md.WriteString("## Result\n\n")
	if summary.OK() {
		md.WriteString("✅ **Success**\n\n")
	} else {
		md.WriteString("❌ **Failed**\n\n")
	}
	md.WriteString(fmt.Sprintf("- **Passed:** %d\n", summary.Passed))
	md.WriteString(fmt.Sprintf("- **Flaky:** %d\n", summary.Flaky))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n", summary.Failed))
	if summary.Filtered > 0 {
		md.WriteString(fmt.Sprintf("- **Filtered out:** %d\n", summary.Filtered))
	}
	md.WriteString("\n")

	if summary.Audit != nil {
		md.WriteString("## Authentication\n\n")
		md.WriteString(fmt.Sprintf("- **Session reuses:** %d\n", summary.Audit.Reuses()))
		md.WriteString(fmt.Sprintf("- **Form logins:** %d\n", summary.Audit.Logins()))
		md.WriteString(fmt.Sprintf("- **Reuse-preferred tests:** %d\n", summary.Audit.ReuseCount))
		md.WriteString(fmt.Sprintf("- **Fresh-login tests:** %d\n\n", summary.Audit.FreshCount))
	}

	if len(summary.HookErrors) > 0 {
		md.WriteString("## Hook Errors\n\n")
		for _, e := range summary.HookErrors {
			md.WriteString(fmt.Sprintf("- %s\n", e))
		}
		md.WriteString("\n")
	}

	md.WriteString("## Tests\n\n")
	md.WriteString("| Status | Test | Worker | Account | Attempts | Duration |\n")
	md.WriteString("|--------|------|--------|---------|----------|----------|\n")
	for _, res := range summary.Results {
		md.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %d | %s |\n",
			statusIcon(res.Status), escapeCell(res.FullTitle()), res.WorkerID, res.Username,
			len(res.Attempts), res.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	var failures []TestResult
	for _, res := range summary.Results {
		if res.Status == StatusFailed {
			failures = append(failures, res)
		}
	}
	if len(failures) > 0 {
		md.WriteString("## Failures\n\n")
		for _, res := range failures {
			md.WriteString(fmt.Sprintf("### %s\n\n", res.FullTitle()))
			md.WriteString(fmt.Sprintf("```\n%s\n```\n\n", res.Error()))
			for _, a := range res.Attempts[len(res.Attempts)-1].Artifacts {
				md.WriteString(fmt.Sprintf("- `%s`\n", a))
			}
			md.WriteString("\n")
		}
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

func statusIcon(s Status) string {
	switch s {
	case StatusPassed:
		return "✅"
	case StatusFlaky:
		return "⚠️"
	default:
		return "❌"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Time     float64      `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Time      float64     `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes a JUnit XML report, one testsuite per suite.
func (w *ArtifactWriter) WriteJUnit(summary *Summary) error {
	path := filepath.Join(w.outputDir, JUnitFile)

	report := junitSuites{
		Name: "authcache " + summary.RunID,
		Time: summary.Duration.Seconds(),
	}
	index := make(map[string]int)
	for _, res := range summary.Results {
		i, ok := index[res.Suite]
		if !ok {
			i = len(report.Suites)
			index[res.Suite] = i
			report.Suites = append(report.Suites, junitSuite{
				Name:      res.Suite,
				Timestamp: summary.StartTime.UTC().Format(time.RFC3339),
			})
		}
		suite := &report.Suites[i]

		tc := junitCase{
			Name:      res.Title,
			Classname: res.Suite,
			Time:      res.Duration.Seconds(),
			SystemOut: fmt.Sprintf("worker %d as %s, %d attempt(s)", res.WorkerID, res.Username, len(res.Attempts)),
		}
		if res.Status == StatusFailed {
			tc.Failure = &junitFailure{Message: firstLine(res.Error()), Type: "failure", Text: res.Error()}
			suite.Failures++
			report.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
		suite.Time += res.Duration.Seconds()
		report.Tests++
	}

	data, err := xml.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit report: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write JUnit report: %w", writeErr)
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// slug turns a test title into a directory name.
func slug(title string, attempt int) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > 80 {
		s = s[:80]
	}
	if attempt > 0 {
		s = fmt.Sprintf("%s-retry%d", s, attempt)
	}
	return s
}

// WriteFailure stores the evidence of a failed attempt: a screenshot and a
// condensed DOM snapshot. Evidence that cannot be captured is skipped; the
// returned paths list what was written.
func (w *ArtifactWriter) WriteFailure(page browser.Page, title string, attempt int) ([]string, error) {
	if !w.config.Enabled || (!w.config.Screenshots && !w.config.DOMSnapshots) {
		return nil, nil
	}

	dir := filepath.Join(w.outputDir, slug(title, attempt))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create failure directory: %w", err)
	}

	var written []string
	if w.config.Screenshots {
		if png, err := page.Screenshot(); err == nil {
			path := filepath.Join(dir, "screenshot.png")
			if err := os.WriteFile(path, png, 0600); err != nil {
				return written, fmt.Errorf("failed to write screenshot: %w", err)
			}
			written = append(written, path)
		}
	}

	if w.config.DOMSnapshots {
		if snap, err := browser.CaptureDOM(page, maxDOMSnapshot); err == nil {
			path := filepath.Join(dir, "dom.html")
			var b strings.Builder
			fmt.Fprintf(&b, "<!-- url: %s -->\n", page.URL())
			fmt.Fprintf(&b, "<!-- title: %s -->\n", snap.Title)
			fmt.Fprintf(&b, "<!-- active: %s -->\n", strings.Join(snap.Active, ", "))
			if snap.Truncated {
				b.WriteString("<!-- truncated -->\n")
			}
			b.WriteString(snap.HTML)
			if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
				return written, fmt.Errorf("failed to write DOM snapshot: %w", err)
			}
			written = append(written, path)
		}
	}

	return written, nil
}
