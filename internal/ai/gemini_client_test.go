package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
)

const testToxicityJSON = `{"toxicity_score":7,"red_flags":["Checks the phone"],"patterns":["control"],"urgency_level":"high","confidence":0.8,"analysis":"Controlling behaviour","recommendation":"Talk to a specialist"}`

func geminiTestConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Provider:         config.AIProviderGemini,
		APIKey:           "test-api-key",
		BaseURL:          baseURL,
		Model:            "gemini-2.0-flash",
		Timeout:          5 * time.Second,
		MaxResponseBytes: 1 << 20,
	}
}

func TestGeminiClient_Complete(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		response   geminiResponse
		statusCode int
		wantErr    bool
		wantReason domain.FailureReason
		wantText   string
	}{
		{
			name: "successful response",
			response: geminiResponse{
				Candidates: []geminiCandidate{
					{
						Content: geminiContent{
							Role:  "model",
							Parts: []geminiPart{{Text: testToxicityJSON}},
						},
						FinishReason: "STOP",
					},
				},
			},
			statusCode: http.StatusOK,
			wantText:   testToxicityJSON,
		},
		{
			name: "thought parts are skipped",
			response: geminiResponse{
				Candidates: []geminiCandidate{
					{
						Content: geminiContent{
							Role: "model",
							Parts: []geminiPart{
								{Text: "reasoning about the answer", Thought: true},
								{Text: testToxicityJSON},
							},
						},
						FinishReason: "STOP",
					},
				},
			},
			statusCode: http.StatusOK,
			wantText:   testToxicityJSON,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			wantErr:    true,
			wantReason: domain.ReasonRateLimited,
		},
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			wantErr:    true,
			wantReason: domain.ReasonTransportError,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			wantErr:    true,
			wantReason: domain.ReasonTransportError,
		},
		{
			name:       "empty candidates",
			response:   geminiResponse{Candidates: []geminiCandidate{}},
			statusCode: http.StatusOK,
			wantErr:    true,
			wantReason: domain.ReasonInvalidResponse,
		},
		{
			name: "blocked by safety filter",
			response: geminiResponse{
				Candidates: []geminiCandidate{{FinishReason: "SAFETY"}},
			},
			statusCode: http.StatusOK,
			wantErr:    true,
			wantReason: domain.ReasonInvalidResponse,
		},
		{
			name: "prompt blocked",
			response: geminiResponse{
				PromptFeedback: &geminiPromptFeedback{BlockReason: "SAFETY"},
			},
			statusCode: http.StatusOK,
			wantErr:    true,
			wantReason: domain.ReasonInvalidResponse,
		},
		{
			name: "API error in response",
			response: geminiResponse{
				Error: &geminiError{Code: 400, Message: "Invalid request", Status: "INVALID_ARGUMENT"},
			},
			statusCode: http.StatusOK,
			wantErr:    true,
			wantReason: domain.ReasonInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type application/json")
				}

				var req geminiRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "system" {
					t.Errorf("system instruction not sent")
				}

				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := NewGeminiClient(geminiTestConfig(server.URL), logger)
			result, err := client.Complete(context.Background(), CompletionRequest{
				Kind:      domain.KindToxicity,
				System:    "system",
				User:      "user",
				MaxTokens: 512,
			})

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var pe *domain.ProviderError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ProviderError, got %T", err)
				}
				if pe.Reason != tt.wantReason {
					t.Errorf("reason = %s, want %s", pe.Reason, tt.wantReason)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Text != tt.wantText {
				t.Errorf("text = %q, want %q", result.Text, tt.wantText)
			}
		})
	}
}

func TestGeminiClient_CompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewGeminiClient(geminiTestConfig(server.URL), zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{
		System:    "system",
		User:      "user",
		MaxTokens: 100,
		Timeout:   50 * time.Millisecond,
	})

	if domain.ReasonOf(err) != domain.ReasonTimeout {
		t.Fatalf("reason = %s, want timeout (err: %v)", domain.ReasonOf(err), err)
	}
	if !domain.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestGeminiClient_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	cfg := geminiTestConfig(server.URL)
	cfg.MaxResponseBytes = 1024

	client := NewGeminiClient(cfg, zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{System: "s", User: "u", MaxTokens: 100})

	if domain.ReasonOf(err) != domain.ReasonInvalidResponse {
		t.Fatalf("reason = %s, want invalid_response", domain.ReasonOf(err))
	}
}

func TestGeminiClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{
			name:       "healthy",
			statusCode: http.StatusOK,
			wantErr:    false,
		},
		{
			name:       "unhealthy",
			statusCode: http.StatusInternalServerError,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewGeminiClient(geminiTestConfig(server.URL), zap.NewNop())
			err := client.HealthCheck(context.Background())

			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGeminiClient_BuildURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		model    string
		apiKey   string
		expected string
	}{
		{
			name:     "default base URL",
			baseURL:  "https://generativelanguage.googleapis.com",
			model:    "gemini-2.0-flash",
			apiKey:   "test-key",
			expected: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent?key=test-key",
		},
		{
			name:     "base URL with version",
			baseURL:  "https://generativelanguage.googleapis.com/v1",
			model:    "gemini-1.5-pro",
			apiKey:   "test-key",
			expected: "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-pro:generateContent?key=test-key",
		},
		{
			name:     "trailing slash removed",
			baseURL:  "https://generativelanguage.googleapis.com/",
			model:    "gemini-2.0-flash",
			apiKey:   "my-key",
			expected: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent?key=my-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := geminiTestConfig(tt.baseURL)
			cfg.APIKey = tt.apiKey
			cfg.Model = tt.model

			client := NewGeminiClient(cfg, zap.NewNop())
			if url := client.buildURL(); url != tt.expected {
				t.Errorf("buildURL() = %s, want %s", url, tt.expected)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	got := maskAPIKey("https://host/v1beta/models/m:generateContent?key=secret&alt=json")
	want := "https://host/v1beta/models/m:generateContent?key=***&alt=json"
	if got != want {
		t.Errorf("maskAPIKey() = %s, want %s", got, want)
	}
}
