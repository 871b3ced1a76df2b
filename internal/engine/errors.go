package engine

import "fmt"

// ValidationError rejects a malformed respond request before any work
// happens. Handlers map it to a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// UpstreamError marks a generation backend failure. When one occurs the
// response path has cached nothing and appended nothing, so a retry
// starts clean. Handlers map it to a 502.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
