package ai

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
)

// NewProvider creates the adapter named by cfg.Provider.
func NewProvider(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.AIProviderAnthropic:
		return NewAnthropicClient(cfg, logger), nil
	case config.AIProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	case config.AIProviderGemini:
		return NewGeminiClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
}

// NewOrchestratorFromConfig builds an orchestrator from application settings.
// Profile system prompts and fallbacks override the built-in ones.
func NewOrchestratorFromConfig(cfg config.AIConfig, profile *config.Profile, observer Observer, logger *zap.Logger) (*Orchestrator, error) {
	if profile == nil {
		profile = config.DefaultProfile()
	}

	prompter, err := NewCustomPromptBuilder(cfg.ResponseLanguage, profile.SystemPrompts())
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}
	validator := NewDefaultValidator()

	fallbacks := DefaultFallbacks()
	for _, kind := range domain.Kinds {
		raw := profile.Operation(kind).Fallback
		if raw == nil {
			continue
		}
		if err := fallbacks.Override(validator, kind, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
	}

	var primary, secondary Provider
	if cfg.MockMode {
		logger.Warn("running in mock mode, AI responses are simulated")
		primary = NewMockClient(logger)
	} else {
		primary, err = NewProvider(cfg.Primary, logger)
		if err != nil {
			return nil, fmt.Errorf("primary: %w", err)
		}
		if cfg.Secondary.Enabled() {
			secondary, err = NewProvider(cfg.Secondary, logger)
			if err != nil {
				return nil, fmt.Errorf("secondary: %w", err)
			}
		}
	}

	return NewOrchestrator(Options{
		Primary:   primary,
		Secondary: secondary,
		Prompter:  prompter,
		Validator: validator,
		Fallbacks: fallbacks,
		Retry: RetryPolicy{
			MaxAttempts:         cfg.RetryAttempts,
			BaseDelay:           cfg.RetryBaseDelay,
			MaxDelay:            cfg.RetryMaxDelay,
			RateLimitMultiplier: cfg.RateLimitMultiplier,
		},
		MaxConcurrent:   cfg.MaxConcurrentRequests,
		DefaultDeadline: cfg.InvocationDeadline,
		Observer:        observer,
		Logger:          logger,
	})
}
