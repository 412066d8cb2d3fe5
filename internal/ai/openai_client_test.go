package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
)

func openAITestClient(url string, maxBytes int64) *OpenAIClient {
	return NewOpenAIClient(config.ProviderConfig{
		Provider:         config.AIProviderOpenAI,
		APIKey:           "test-key",
		BaseURL:          url,
		Model:            "anthropic/claude-3.5-sonnet",
		Timeout:          5 * time.Second,
		MaxResponseBytes: maxBytes,
	}, zap.NewNop())
}

func TestOpenAIClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "anthropic/claude-3.5-sonnet", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"reply\":\"hi\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`))
	}))
	defer server.Close()

	result, err := openAITestClient(server.URL, 1<<20).Complete(context.Background(), CompletionRequest{
		Kind:      domain.KindChatTurn,
		System:    "system",
		User:      "hello",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"reply":"hi"}`, result.Text)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 4}, result.Usage)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		maxBytes      int64
		wantReason    domain.FailureReason
		wantRetryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, wantReason: domain.ReasonRateLimited, wantRetryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"auth"}}`, wantReason: domain.ReasonTransportError},
		{name: "server error", status: http.StatusBadGateway, body: `{"error":{"message":"upstream","type":"server"}}`, wantReason: domain.ReasonTransportError, wantRetryable: true},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantReason: domain.ReasonInvalidResponse},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"length"}]}`, wantReason: domain.ReasonInvalidResponse},
		{name: "response too large", status: http.StatusOK, body: `{"choices":[{"message":{"content":"` + strings.Repeat("x", 4096) + `"}}]}`, maxBytes: 1024, wantReason: domain.ReasonInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			maxBytes := tt.maxBytes
			if maxBytes == 0 {
				maxBytes = 1 << 20
			}

			_, err := openAITestClient(server.URL, maxBytes).Complete(context.Background(), CompletionRequest{System: "s", User: "u", MaxTokens: 10})
			require.Error(t, err)

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantReason, pe.Reason)
			assert.Equal(t, tt.wantRetryable, pe.Retryable)
			assert.Equal(t, "openai", pe.Provider)
		})
	}
}

func TestOpenAIClient_RateLimitRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := openAITestClient(server.URL, 1<<20).Complete(context.Background(), CompletionRequest{System: "s", User: "u", MaxTokens: 10})
	require.Error(t, err)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ReasonRateLimited, pe.Reason)
	assert.Equal(t, 7*time.Second, pe.RetryAfter)

	// The backoff honors the vendor's hint over the computed delay.
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 30 * time.Second, RateLimitMultiplier: 2}
	assert.Equal(t, 7*time.Second, policy.Delay(1, err))
}

func TestMockClient_CompleteValidates(t *testing.T) {
	client := NewMockClient(zap.NewNop())
	v := NewDefaultValidator()

	for _, kind := range domain.Kinds {
		res, err := client.Complete(context.Background(), CompletionRequest{Kind: kind})
		require.NoError(t, err, kind)

		raw, err := parseObject(res.Text)
		require.NoError(t, err, kind)

		_, err = v.Validate(kind, raw)
		assert.NoError(t, err, kind)
	}
}
