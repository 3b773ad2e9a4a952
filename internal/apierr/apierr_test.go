package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom_PassesThroughAPIErrors(t *testing.T) {
	orig := NotFound("run_not_found", "Run not found: run_abc")
	got := From(fmt.Errorf("dispatch: %w", orig))
	assert.Equal(t, 404, got.Status)
	assert.Equal(t, "run_not_found", got.Code)
	assert.Contains(t, got.Message, "run_abc")
}

func TestFrom_WrapsUnknownErrorsAs500(t *testing.T) {
	got := From(errors.New("disk on fire"))
	assert.Equal(t, 500, got.Status)
	assert.Equal(t, "internal_error", got.Code)
	assert.False(t, got.Retryable)
}

func TestNewEnvelope(t *testing.T) {
	err := BadRequest("invalid_request", "name is required.").WithDetails(map[string]any{"field": "name"})
	env := NewEnvelope(err, "req_123")
	require.Equal(t, "invalid_request", env.Error.Code)
	assert.Equal(t, "req_123", env.Error.RequestID)
	assert.Equal(t, "name", env.Error.Details["field"])
	assert.False(t, env.Error.Retryable)
}

func TestAsRetryable(t *testing.T) {
	err := New(502, "provider_unavailable", "upstream timed out").AsRetryable()
	assert.True(t, err.Retryable)
}
