// Package errs defines the error taxonomy shared across the service.
package errs

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned for operations against an unknown or
// already-ended session id.
var ErrSessionNotFound = errors.New("session not found")

// ConfigError marks invalid configuration. Fatal: rejected at startup
// before any document is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// ExtractionError marks a single unreadable document. Recoverable: other
// documents in the same upload are still processed.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UpstreamError marks an embedding or completion capability failure.
// Retryable: the caller may repeat the request; no partial state is kept.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an upstream failure the caller can
// safely retry.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
