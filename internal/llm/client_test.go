package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa/backend/internal/errs"
)

func TestComplete_EmptyChoicesIsAnErrorNotAPanic(t *testing.T) {
	// A well-formed completion response with zero choices is allowed by
	// the API contract and must surface as a retryable error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	client := NewClient(Options{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-mini",
	})

	_, err := client.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, errs.IsRetryable(err))
	assert.Contains(t, err.Error(), "no choices")
}
