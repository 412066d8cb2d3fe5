package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
)

// OpenAIClient implements Provider for OpenAI-compatible APIs such as OpenRouter.
type OpenAIClient struct {
	config config.ProviderConfig
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible adapter.
func NewOpenAIClient(cfg config.ProviderConfig, logger *zap.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &limitedTransport{base: http.DefaultTransport, max: cfg.MaxResponseBytes},
	}

	return &OpenAIClient{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.Named("openai_client"),
	}
}

// Name implements Provider.
func (c *OpenAIClient) Name() string { return string(config.AIProviderOpenAI) }

// Model implements Provider.
func (c *OpenAIClient) Model() string { return c.config.Model }

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CallResult, error) {
	ctx, cancel := withCallTimeout(ctx, req.Timeout, c.config.Timeout)
	defer cancel()

	capture := &headerCapture{}
	ctx = context.WithValue(ctx, headerCaptureKey{}, capture)

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Debug("chat completion failed", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
		return nil, c.classify(ctx, err, capture.header)
	}

	if len(resp.Choices) == 0 {
		return nil, invalidResponse(c.Name(), "no choices in response")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, invalidResponse(c.Name(), "response blocked by content filter")
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, invalidResponse(c.Name(), "empty content (finish_reason %q)", choice.FinishReason)
	}

	c.logger.Debug("chat completion completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return &CallResult{
		Text: choice.Message.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// classify maps go-openai errors to provider errors. header holds the failed
// response's headers when the transport captured them.
func (c *OpenAIClient) classify(ctx context.Context, err error, header http.Header) *domain.ProviderError {
	if errors.Is(err, errResponseTooLarge) {
		return domain.NewProviderError(c.Name(), domain.ReasonInvalidResponse, false, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(c.Name(), apiErr.HTTPStatusCode, header, []byte(apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(c.Name(), reqErr.HTTPStatusCode, header, nil)
	}

	return transportError(ctx, c.Name(), err)
}

// HealthCheck verifies the API is reachable with the configured key.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return c.classify(ctx, err, nil)
	}
	return nil
}

// headerCaptureKey carries a *headerCapture in a request context.
type headerCaptureKey struct{}

// headerCapture receives the headers of a non-2xx response, since go-openai
// errors do not expose them.
type headerCapture struct {
	header http.Header
}

// limitedTransport rejects response bodies larger than max bytes and hands
// error response headers to a headerCapture found in the request context.
type limitedTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if capture, ok := req.Context().Value(headerCaptureKey{}).(*headerCapture); ok {
			capture.header = resp.Header.Clone()
		}
	}
	if t.max <= 0 {
		return resp, nil
	}
	if resp.ContentLength > t.max {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content length %d", errResponseTooLarge, resp.ContentLength)
	}

	body, err := readLimited(resp.Body, t.max)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
