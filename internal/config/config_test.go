package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/psychodetective/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_PRIMARY_PROVIDER", "anthropic")
	t.Setenv("AI_PRIMARY_API_KEY", "sk-test")
	t.Setenv("AI_SECONDARY_PROVIDER", "")
	t.Setenv("AI_PROFILE_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AI.Primary.Provider != AIProviderAnthropic {
		t.Errorf("primary provider = %q", cfg.AI.Primary.Provider)
	}
	if cfg.AI.Primary.BaseURL != "https://api.anthropic.com" {
		t.Errorf("primary base url = %q", cfg.AI.Primary.BaseURL)
	}
	if cfg.AI.Secondary.Enabled() {
		t.Error("secondary should be disabled by default")
	}
	if cfg.AI.RetryAttempts != 3 || cfg.AI.MaxConcurrentRequests != 10 {
		t.Errorf("retry attempts = %d, max concurrent = %d", cfg.AI.RetryAttempts, cfg.AI.MaxConcurrentRequests)
	}
	if cfg.Processing.MinTextLength != 10 || cfg.Processing.MaxTextLength != 4000 {
		t.Errorf("text limits = %d..%d", cfg.Processing.MinTextLength, cfg.Processing.MaxTextLength)
	}
	if got := cfg.Profile.Operation(domain.KindToxicity).MaxTokens; got != 1500 {
		t.Errorf("toxicity max tokens = %d", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AI_PRIMARY_PROVIDER", "Gemini")
	t.Setenv("AI_PRIMARY_API_KEY", "g-key")
	t.Setenv("AI_SECONDARY_PROVIDER", "openai")
	t.Setenv("AI_SECONDARY_API_KEY", "or-key")
	t.Setenv("AI_RETRY_BASE_DELAY", "2")
	t.Setenv("AI_RETRY_MAX_DELAY", "30s")
	t.Setenv("AI_PROFILE_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AI.Primary.Provider != AIProviderGemini || cfg.AI.Primary.Model != "gemini-2.0-flash" {
		t.Errorf("primary = %+v", cfg.AI.Primary)
	}
	if cfg.AI.Secondary.Provider != AIProviderOpenAI || cfg.AI.Secondary.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("secondary = %+v", cfg.AI.Secondary)
	}
	if cfg.AI.RetryBaseDelay != 2*time.Second || cfg.AI.RetryMaxDelay != 30*time.Second {
		t.Errorf("retry delays = %s, %s", cfg.AI.RetryBaseDelay, cfg.AI.RetryMaxDelay)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing key", env: map[string]string{"AI_PRIMARY_API_KEY": ""}},
		{name: "unknown provider", env: map[string]string{"AI_PRIMARY_PROVIDER": "cohere"}},
		{name: "zero attempts", env: map[string]string{"AI_RETRY_ATTEMPTS": "0"}},
		{name: "no admission capacity", env: map[string]string{"AI_MAX_CONCURRENT_REQUESTS": "0"}},
		{name: "inverted text limits", env: map[string]string{"MIN_TEXT_LENGTH": "500", "MAX_TEXT_LENGTH": "100"}},
		{name: "max delay below base", env: map[string]string{"AI_RETRY_BASE_DELAY": "5s", "AI_RETRY_MAX_DELAY": "1s"}},
		{name: "missing profile file", env: map[string]string{"AI_PROFILE_FILE": "/nonexistent/profile.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AI_PRIMARY_PROVIDER", "anthropic")
			t.Setenv("AI_PRIMARY_API_KEY", "sk-test")
			t.Setenv("AI_SECONDARY_PROVIDER", "")
			t.Setenv("AI_PROFILE_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_MockModeNeedsNoKey(t *testing.T) {
	t.Setenv("AI_MOCK_MODE", "true")
	t.Setenv("AI_PRIMARY_API_KEY", "")
	t.Setenv("AI_PROFILE_FILE", "")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `operations:
  toxicity_analysis:
    max_tokens: 2000
    temperature: 0
  chat_turn:
    system_prompt: "Ты бережный консультант."
    fallback:
      reply: "Сервис временно недоступен"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if err := profile.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tox := profile.Operation(domain.KindToxicity)
	if tox.MaxTokens != 2000 || tox.Temperature != 0 {
		t.Errorf("toxicity = %+v", tox)
	}
	if got := profile.Operation(domain.KindPartnerProfile).MaxTokens; got != 4000 {
		t.Errorf("partner profile keeps default budget, got %d", got)
	}
	if got := profile.SystemPrompts()[domain.KindChatTurn]; got != "Ты бережный консультант." {
		t.Errorf("chat system prompt = %q", got)
	}
	if got := profile.Operation(domain.KindChatTurn).Fallback["reply"]; got != "Сервис временно недоступен" {
		t.Errorf("chat fallback reply = %v", got)
	}
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown kind", content: "operations:\n  horoscope:\n    max_tokens: 100\n"},
		{name: "malformed yaml", content: "operations: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profile.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadProfile(path)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestProfile_Validate(t *testing.T) {
	profile := DefaultProfile()
	if err := profile.Validate(); err != nil {
		t.Fatalf("default profile: %v", err)
	}

	op := profile.Operations[domain.KindCompatibility]
	op.Temperature = 2.5
	profile.Operations[domain.KindCompatibility] = op
	if err := profile.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}

	delete(profile.Operations, domain.KindCompatibility)
	if err := profile.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
