package runner

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Filter selects tests by full title.
type Filter struct {
	match []glob.Glob
	skip  []glob.Glob
}

// NewFilter compiles match and skip patterns. A pattern without glob
// metacharacters matches any title containing it.
func NewFilter(match, skip []string) (*Filter, error) {
	f := &Filter{}

	for _, pattern := range match {
		g, err := compileTitlePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern '%s': %w", pattern, err)
		}
		f.match = append(f.match, g)
	}

	for _, pattern := range skip {
		g, err := compileTitlePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid skip pattern '%s': %w", pattern, err)
		}
		f.skip = append(f.skip, g)
	}

	return f, nil
}

func compileTitlePattern(pattern string) (glob.Glob, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		pattern = "*" + glob.QuoteMeta(pattern) + "*"
	}
	return glob.Compile(pattern)
}

// Includes reports whether the test with the given full title should run.
func (f *Filter) Includes(title string) bool {
	// Skip patterns take precedence
	for _, g := range f.skip {
		if g.Match(title) {
			return false
		}
	}

	if len(f.match) == 0 {
		return true
	}

	for _, g := range f.match {
		if g.Match(title) {
			return true
		}
	}
	return false
}
