package snapshot

import "fmt"

// ParseError reports a snapshot file that exists but cannot be decoded.
// It means the cache is broken, which is different from never having been
// written, and must not be treated as a cache miss.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt session snapshot %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InjectionError reports a failure to inject a snapshot into a page: either
// the preload could not be registered before the first navigation, or it
// threw inside the page while writing session storage.
type InjectionError struct {
	Username string
	Err      error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("failed to inject session snapshot for %s: %v", e.Username, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }
