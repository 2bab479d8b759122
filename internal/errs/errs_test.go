package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	upstream := &UpstreamError{Service: "embedding", Err: errors.New("timeout")}

	assert.True(t, IsRetryable(upstream))
	assert.True(t, IsRetryable(fmt.Errorf("ingest failed: %w", upstream)))

	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(&ExtractionError{Document: "a.pdf", Err: errors.New("corrupt")}))
	assert.False(t, IsRetryable(&ConfigError{Field: "chunking.size", Reason: "must be positive"}))
	assert.False(t, IsRetryable(nil))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	assert.ErrorIs(t, &UpstreamError{Service: "llm", Err: cause}, cause)
	assert.ErrorIs(t, &ExtractionError{Document: "a.pdf", Err: cause}, cause)
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&ConfigError{Field: "retrieval.topK", Reason: "must be positive"}).Error(), "retrieval.topK")
	assert.Contains(t, (&ExtractionError{Document: "a.pdf", Err: errors.New("bad xref")}).Error(), "a.pdf")
	assert.Contains(t, (&UpstreamError{Service: "embedding", Err: errors.New("503")}).Error(), "embedding")
}
