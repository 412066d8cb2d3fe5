// Package ai provides the provider adapters, prompt builder, validators and
// the orchestrator that routes analysis operations across providers.
package ai

import (
	"context"
	"time"

	"github.com/psychodetective/internal/domain"
)

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	// Kind is the operation being served.
	Kind domain.Kind

	System      string
	User        string
	MaxTokens   int
	Temperature float64

	// Timeout bounds this one call. Zero means the adapter default.
	Timeout time.Duration
}

// Usage reports token accounting returned by the vendor.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CallResult is the raw text returned by a successful call.
type CallResult struct {
	Text  string
	Usage Usage
}

// Provider defines one LLM vendor endpoint.
// Complete performs exactly one network call and never retries; failures are
// returned as *domain.ProviderError.
type Provider interface {
	// Name returns a stable adapter name used in logs and metrics.
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Complete sends one completion request.
	Complete(ctx context.Context, req CompletionRequest) (*CallResult, error)

	// HealthCheck verifies the provider is configured and reachable.
	HealthCheck(ctx context.Context) error
}

// Prompt is a rendered system and user message pair.
type Prompt struct {
	System string
	User   string
}

// PromptBuilder renders operations into prompts.
type PromptBuilder interface {
	// Build renders the operation. Equal operations produce equal prompts.
	Build(op domain.Operation) (Prompt, error)
}

// ResultValidator converts a decoded JSON object into a typed result.
type ResultValidator interface {
	// Validate returns domain.ErrSchemaViolation when raw does not match the kind schema.
	Validate(kind domain.Kind, raw map[string]any) (*domain.AnalysisResult, error)
}

// Observer receives orchestration events.
type Observer interface {
	// OnAttempt is called after every provider call.
	OnAttempt(provider string, kind domain.Kind, err error, latency time.Duration)

	// OnComplete is called once per invocation that produced a result.
	OnComplete(result *domain.AnalysisResult)

	// OnRejected is called when an invocation fails before any provider call.
	OnRejected(kind domain.Kind, err error)
}

type nopObserver struct{}

func (nopObserver) OnAttempt(string, domain.Kind, error, time.Duration) {}
func (nopObserver) OnComplete(*domain.AnalysisResult) {}
func (nopObserver) OnRejected(domain.Kind, error) {}
