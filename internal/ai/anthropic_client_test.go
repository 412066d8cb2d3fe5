package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
)

func anthropicTestClient(url string) *AnthropicClient {
	return NewAnthropicClient(config.ProviderConfig{
		Provider:         config.AIProviderAnthropic,
		APIKey:           "test-key",
		BaseURL:          url,
		Model:            "claude-test",
		Timeout:          5 * time.Second,
		MaxResponseBytes: 1 << 20,
	}, zap.NewNop())
}

func TestAnthropicClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "system prompt", req.System)
		assert.Equal(t, 256, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"reply\":\"hi\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":5}}`))
	}))
	defer server.Close()

	result, err := anthropicTestClient(server.URL).Complete(context.Background(), CompletionRequest{
		Kind:        domain.KindChatTurn,
		System:      "system prompt",
		User:        "hello",
		MaxTokens:   256,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"reply":"hi"}`, result.Text)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 5}, result.Usage)
}

func TestAnthropicClient_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		retryAfter    string
		wantReason    domain.FailureReason
		wantRetryable bool
		wantAfter     time.Duration
	}{
		{name: "overloaded", status: statusOverloaded, retryAfter: "3", wantReason: domain.ReasonRateLimited, wantRetryable: true, wantAfter: 3 * time.Second},
		{name: "rate limited", status: http.StatusTooManyRequests, wantReason: domain.ReasonRateLimited, wantRetryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantReason: domain.ReasonTransportError},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"type":"invalid_request_error"}}`, wantReason: domain.ReasonTransportError},
		{name: "server error", status: http.StatusInternalServerError, wantReason: domain.ReasonTransportError, wantRetryable: true},
		{name: "empty content", status: http.StatusOK, body: `{"content":[],"stop_reason":"max_tokens"}`, wantReason: domain.ReasonInvalidResponse},
		{name: "malformed envelope", status: http.StatusOK, body: `not json`, wantReason: domain.ReasonInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := anthropicTestClient(server.URL).Complete(context.Background(), CompletionRequest{System: "s", User: "u", MaxTokens: 10})
			require.Error(t, err)

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantReason, pe.Reason)
			assert.Equal(t, tt.wantRetryable, pe.Retryable)
			assert.Equal(t, "anthropic", pe.Provider)
			assert.Equal(t, tt.wantAfter, pe.RetryAfter)
		})
	}
}

func TestAnthropicClient_Endpoint(t *testing.T) {
	assert.Equal(t, "https://api.anthropic.com/v1/messages", anthropicTestClient("https://api.anthropic.com").endpoint("messages"))
	assert.Equal(t, "https://proxy.local/v1/messages", anthropicTestClient("https://proxy.local/v1/").endpoint("messages"))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}
