package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psychodetective/internal/domain"
)

// OperationProfile holds the per-kind call settings.
type OperationProfile struct {
	// MaxTokens is the response token budget.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// Fallback replaces the built-in fallback result when set. It uses the
	// same field names as provider responses and is validated the same way.
	Fallback map[string]any `yaml:"fallback,omitempty"`
}

// Profile maps each operation kind to its settings.
type Profile struct {
	Operations map[domain.Kind]OperationProfile `yaml:"operations"`
}

// DefaultProfile returns the built-in budgets.
func DefaultProfile() *Profile {
	return &Profile{
		Operations: map[domain.Kind]OperationProfile{
			domain.KindToxicity:        {MaxTokens: 1500, Temperature: 0.3},
			domain.KindPartnerProfile:  {MaxTokens: 4000, Temperature: 0.7},
			domain.KindCompatibility:   {MaxTokens: 2000, Temperature: 0.5},
			domain.KindPersonalityType: {MaxTokens: 1000, Temperature: 0.3},
			domain.KindChatTurn:        {MaxTokens: 800, Temperature: 0.7},
		},
	}
}

// LoadProfile reads a YAML profile file. Kinds missing from the file keep
// their built-in settings.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var file struct {
		Operations map[domain.Kind]struct {
			MaxTokens    int            `yaml:"max_tokens"`
			Temperature  *float64       `yaml:"temperature"`
			SystemPrompt string         `yaml:"system_prompt"`
			Fallback     map[string]any `yaml:"fallback"`
		} `yaml:"operations"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse profile %s: %v", domain.ErrInvalidConfig, path, err)
	}

	profile := DefaultProfile()
	for kind, entry := range file.Operations {
		op, ok := profile.Operations[kind]
		if !ok {
			return nil, fmt.Errorf("%w: profile has unknown operation %q", domain.ErrInvalidConfig, kind)
		}
		if entry.MaxTokens != 0 {
			op.MaxTokens = entry.MaxTokens
		}
		if entry.Temperature != nil {
			op.Temperature = *entry.Temperature
		}
		op.SystemPrompt = entry.SystemPrompt
		op.Fallback = entry.Fallback
		profile.Operations[kind] = op
	}

	return profile, nil
}

// Operation returns the settings for kind.
func (p *Profile) Operation(kind domain.Kind) OperationProfile {
	return p.Operations[kind]
}

// SystemPrompts returns the configured system prompt overrides.
func (p *Profile) SystemPrompts() map[domain.Kind]string {
	out := make(map[domain.Kind]string)
	for kind, op := range p.Operations {
		if op.SystemPrompt != "" {
			out[kind] = op.SystemPrompt
		}
	}
	return out
}

// Validate checks budgets and temperatures for every kind.
func (p *Profile) Validate() error {
	for _, kind := range domain.Kinds {
		op, ok := p.Operations[kind]
		if !ok {
			return fmt.Errorf("%w: profile is missing operation %q", domain.ErrInvalidConfig, kind)
		}
		if op.MaxTokens < 100 {
			return fmt.Errorf("%w: %s max_tokens must be at least 100", domain.ErrInvalidConfig, kind)
		}
		if op.Temperature < 0 || op.Temperature > 2 {
			return fmt.Errorf("%w: %s temperature must be between 0 and 2", domain.ErrInvalidConfig, kind)
		}
	}
	return nil
}
