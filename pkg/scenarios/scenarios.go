// Package scenarios holds the built-in e2e suites run against the demo shop.
//
// Suites are plain runner.Suite values. Tests get an authenticated
// dashboard through t.Dashboard (session reuse preferred) or
// t.FreshDashboard (always a form login), or drive the login page of an
// unauthenticated tab directly.
package scenarios

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/authcache/pkg/runner"
)

// Suite keys accepted by Select.
const (
	WorkerSessions = "worker-sessions"
	Comparison     = "comparison"
	Guest          = "guest"
	Admin          = "admin"
	SaleBanner     = "sale-banner"
	API            = "api"
)

var registry = map[string]func() []runner.Suite{
	WorkerSessions: func() []runner.Suite { return []runner.Suite{WorkerSessionsSuite()} },
	Comparison:     ComparisonSuites,
	Guest:          func() []runner.Suite { return []runner.Suite{GuestSuite()} },
	Admin:          func() []runner.Suite { return []runner.Suite{AdminSuite()} },
	SaleBanner:     func() []runner.Suite { return []runner.Suite{SaleBannerSuite()} },
	API:            func() []runner.Suite { return []runner.Suite{APISuite()} },
}

// order is the order All returns suites in.
var order = []string{WorkerSessions, Comparison, Guest, Admin, SaleBanner, API}

// Names lists the suite keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every built-in suite.
func All() []runner.Suite {
	var suites []runner.Suite
	for _, name := range order {
		suites = append(suites, registry[name]()...)
	}
	return suites
}

// Select returns the suites for the given keys, or all of them when keys
// is empty.
func Select(keys []string) ([]runner.Suite, error) {
	if len(keys) == 0 {
		return All(), nil
	}
	var suites []runner.Suite
	seen := make(map[string]bool)
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		build, ok := registry[key]
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %s)", key, strings.Join(Names(), ", "))
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		suites = append(suites, build()...)
	}
	return suites, nil
}

// check returns an error built from format when ok is false.
func check(ok bool, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	return fmt.Errorf(format, args...)
}
