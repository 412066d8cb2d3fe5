package ai

import (
	"context"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

// mockResponses are canned provider outputs that pass validation.
var mockResponses = map[domain.Kind]string{
	domain.KindToxicity: `{
  "toxicity_score": 4,
  "red_flags": ["This is a mock response"],
  "patterns": [],
  "urgency_level": "low",
  "confidence": 0.5,
  "analysis": "This is a mock response. Enable real AI by setting AI_MOCK_MODE=false",
  "recommendation": "Configure AI_PRIMARY_API_KEY to enable real analysis"
}`,
	domain.KindPartnerProfile: `{
  "narrative": "This is a mock profile. Enable real AI by setting AI_MOCK_MODE=false",
  "overall_risk_score": 35,
  "urgency_level": "low",
  "block_scores": {"narcissism": 3, "control": 4, "gaslighting": 2, "emotion": 4, "intimacy": 3, "social": 3},
  "red_flags": [],
  "strengths": ["Mock strength"],
  "recommendations": ["Configure AI_PRIMARY_API_KEY to enable real analysis"],
  "confidence": 0.5
}`,
	domain.KindCompatibility: `{
  "overall_score": 7,
  "dimensions": {"communication": 7, "values": 7, "lifestyle": 6, "emotional": 8},
  "strengths": ["Mock strength"],
  "challenges": ["Mock challenge"],
  "recommendations": ["Configure AI_PRIMARY_API_KEY to enable real analysis"],
  "summary": "This is a mock compatibility summary."
}`,
	domain.KindPersonalityType: `{
  "type": "harmonizer",
  "description": "This is a mock personality description.",
  "traits": ["Mock trait"],
  "confidence": 0.5
}`,
	domain.KindChatTurn: `{"reply": "This is a mock reply. Enable real AI by setting AI_MOCK_MODE=false"}`,
}

// MockClient implements Provider with canned responses.
type MockClient struct {
	logger *zap.Logger
}

// NewMockClient creates a new mock provider for offline runs.
func NewMockClient(logger *zap.Logger) *MockClient {
	return &MockClient{
		logger: logger.Named("mock_ai_client"),
	}
}

// Name implements Provider.
func (c *MockClient) Name() string { return "mock" }

// Model implements Provider.
func (c *MockClient) Model() string { return "mock" }

// Complete returns the canned response for the request kind.
func (c *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CallResult, error) {
	c.logger.Debug("mock completion", zap.String("kind", string(req.Kind)), zap.Int("prompt_length", len(req.User)))

	if err := ctx.Err(); err != nil {
		return nil, transportError(ctx, c.Name(), err)
	}

	text, ok := mockResponses[req.Kind]
	if !ok {
		return nil, invalidResponse(c.Name(), "no mock response for kind %q", req.Kind)
	}
	return &CallResult{Text: text}, nil
}

// HealthCheck always returns success for mock client.
func (c *MockClient) HealthCheck(ctx context.Context) error {
	return nil
}
