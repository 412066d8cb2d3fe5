package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
)

// Gemini API request/response structures

// geminiRequest represents the request body for Gemini API.
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings,omitempty"`
}

// geminiContent represents a content block in Gemini API.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart represents a part of content.
// Thinking models mark reasoning parts with Thought.
type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

// geminiGenerationConfig contains generation parameters.
type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

// geminiSafetySetting represents a safety setting for content filtering.
type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// geminiResponse represents the response from Gemini API.
type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	Error          *geminiError          `json:"error,omitempty"`
	UsageMetadata  *geminiUsageMetadata  `json:"usageMetadata,omitempty"`
}

// geminiUsageMetadata contains token usage info.
type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// geminiCandidate represents a response candidate.
type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// geminiPromptFeedback contains feedback about the prompt.
type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// geminiError represents an error response from Gemini API.
type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiClient implements Provider using Google's Gemini API.
type GeminiClient struct {
	config     config.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiClient creates a new Gemini adapter.
func NewGeminiClient(cfg config.ProviderConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("gemini_client"),
	}
}

// Name implements Provider.
func (c *GeminiClient) Name() string { return string(config.AIProviderGemini) }

// Model implements Provider.
func (c *GeminiClient) Model() string { return c.config.Model }

// Complete sends one generateContent request.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CallResult, error) {
	ctx, cancel := withCallTimeout(ctx, req.Timeout, c.config.Timeout)
	defer cancel()

	// Thinking models spend output tokens on reasoning
	maxTokens := req.MaxTokens
	if isThinkingModel(c.config.Model) {
		maxTokens = req.MaxTokens * 4
		if maxTokens < 4096 {
			maxTokens = 4096
		}
	}

	url := c.buildURL()
	c.logger.Debug("sending Gemini request",
		zap.String("url", maskAPIKey(url)),
		zap.Int("max_tokens", maxTokens),
	)

	startTime := time.Now()
	call := jsonCall{
		provider: c.Name(),
		url:      url,
		body: geminiRequest{
			Contents: []geminiContent{
				{Role: "user", Parts: []geminiPart{{Text: req.User}}},
			},
			SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: req.System}}},
			GenerationConfig: geminiGenerationConfig{
				Temperature:      req.Temperature,
				MaxOutputTokens:  maxTokens,
				ResponseMIMEType: "application/json",
			},
			// Users describe abuse; default filters block those descriptions.
			SafetySettings: []geminiSafetySetting{
				{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
				{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
				{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
				{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
			},
		},
		maxBytes: c.config.MaxResponseBytes,
	}

	body, err := call.do(ctx, c.httpClient)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("failed to unmarshal Gemini response",
			zap.Error(err),
			zap.String("body_preview", truncate(string(body), 500)),
		)
		return nil, invalidResponse(c.Name(), "parse response: %v", err)
	}

	// Check for API-level errors
	if resp.Error != nil {
		return nil, invalidResponse(c.Name(), "[%d] %s: %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}

	// Check for blocked content
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, invalidResponse(c.Name(), "prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return nil, invalidResponse(c.Name(), "no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, invalidResponse(c.Name(), "response blocked by safety filter")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, invalidResponse(c.Name(), "empty content (finish_reason %q)", candidate.FinishReason)
	}

	c.logger.Debug("Gemini call completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.String("finish_reason", candidate.FinishReason),
	)

	result := &CallResult{Text: text.String()}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return result, nil
}

// buildURL constructs the Gemini API URL.
func (c *GeminiClient) buildURL() string {
	baseURL := strings.TrimSuffix(c.config.BaseURL, "/")

	// Support both full URL and just the base
	if strings.Contains(baseURL, "/v1") {
		return fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, c.config.Model, c.config.APIKey)
	}

	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", baseURL, c.config.Model, c.config.APIKey)
}

// HealthCheck verifies the Gemini API is reachable.
func (c *GeminiClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1beta/models?key=%s", strings.TrimSuffix(c.config.BaseURL, "/"), c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(c.Name(), resp.StatusCode, resp.Header, nil)
	}

	return nil
}

// maskAPIKey masks the API key in a URL for safe logging.
func maskAPIKey(url string) string {
	if idx := strings.Index(url, "key="); idx != -1 {
		endIdx := strings.Index(url[idx:], "&")
		if endIdx == -1 {
			return url[:idx] + "key=***"
		}
		return url[:idx] + "key=***" + url[idx+endIdx:]
	}
	return url
}

// isThinkingModel returns true if the model is a thinking/reasoning model
// that uses tokens for internal reasoning (e.g., gemini-2.5-pro).
func isThinkingModel(model string) bool {
	return strings.Contains(model, "2.5") ||
		strings.Contains(model, "thinking") ||
		strings.Contains(model, "reasoning")
}
