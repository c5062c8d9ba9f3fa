package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openaiStub(t *testing.T, status int, body string) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewOpenAIClientWithConfig("test-key", srv.URL+"/v1", "gpt-4o-mini")
}

func TestComplete_Success(t *testing.T) {
	client := openaiStub(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}]}`)

	answer, err := client.Complete(context.Background(), "system", "user", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", answer)
}

func TestComplete_RateLimited(t *testing.T) {
	client := openaiStub(t, http.StatusTooManyRequests,
		`{"error":{"message":"rate limit exceeded","type":"requests"}}`)

	_, err := client.Complete(context.Background(), "system", "user", GenerationParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsRetryable(err))
}

func TestComplete_ProviderError(t *testing.T) {
	client := openaiStub(t, http.StatusInternalServerError,
		`{"error":{"message":"server overloaded","type":"server_error"}}`)

	_, err := client.Complete(context.Background(), "system", "user", GenerationParams{})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestComplete_InvalidRequest(t *testing.T) {
	client := openaiStub(t, http.StatusBadRequest,
		`{"error":{"message":"invalid model","type":"invalid_request_error"}}`)

	_, err := client.Complete(context.Background(), "system", "user", GenerationParams{})
	require.Error(t, err)

	var ire *InvalidRequestError
	require.ErrorAs(t, err, &ire)
	assert.False(t, IsRetryable(err))
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := openaiStub(t, http.StatusOK, `{"choices":[]}`)

	_, err := client.Complete(context.Background(), "system", "user", GenerationParams{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "an empty completion is a provider fault")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimited))
	assert.True(t, IsRetryable(&ProviderError{Err: errors.New("boom")}))
	assert.False(t, IsRetryable(&InvalidRequestError{StatusCode: 400, Err: errors.New("bad")}))
	assert.False(t, IsRetryable(errors.New("misc")))
}
