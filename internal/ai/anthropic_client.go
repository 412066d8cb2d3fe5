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

const anthropicVersion = "2023-06-01"

// Anthropic Messages API request/response structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient implements Provider using the Anthropic Messages API.
type AnthropicClient struct {
	config     config.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAnthropicClient creates a new Anthropic adapter.
func NewAnthropicClient(cfg config.ProviderConfig, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("anthropic_client"),
	}
}

// Name implements Provider.
func (c *AnthropicClient) Name() string { return string(config.AIProviderAnthropic) }

// Model implements Provider.
func (c *AnthropicClient) Model() string { return c.config.Model }

// Complete sends one Messages API request.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CallResult, error) {
	ctx, cancel := withCallTimeout(ctx, req.Timeout, c.config.Timeout)
	defer cancel()

	startTime := time.Now()
	call := jsonCall{
		provider: c.Name(),
		url:      c.endpoint("messages"),
		headers: map[string]string{
			"x-api-key":         c.config.APIKey,
			"anthropic-version": anthropicVersion,
		},
		body: anthropicRequest{
			Model:       c.config.Model,
			System:      req.System,
			Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
		maxBytes: c.config.MaxResponseBytes,
	}

	body, err := call.do(ctx, c.httpClient)
	if err != nil {
		c.logger.Debug("anthropic call failed", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("failed to unmarshal Anthropic response",
			zap.Error(err),
			zap.String("body_preview", truncate(string(body), 500)),
		)
		return nil, invalidResponse(c.Name(), "parse response: %v", err)
	}

	if resp.Error != nil {
		return nil, invalidResponse(c.Name(), "%s: %s", resp.Error.Type, resp.Error.Message)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, invalidResponse(c.Name(), "empty content (stop_reason %q)", resp.StopReason)
	}

	c.logger.Debug("anthropic call completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)

	return &CallResult{
		Text: text.String(),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// HealthCheck verifies the Anthropic API is reachable with the configured key.
func (c *AnthropicClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("models"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

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

// endpoint builds an API URL, accepting base URLs with or without /v1.
func (c *AnthropicClient) endpoint(path string) string {
	base := strings.TrimSuffix(c.config.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return fmt.Sprintf("%s/%s", base, path)
}
