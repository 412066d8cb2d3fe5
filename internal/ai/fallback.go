package ai

import (
	"fmt"

	"github.com/psychodetective/internal/domain"
)

// FallbackSet holds the static result returned per kind when no provider
// produced a usable answer.
type FallbackSet map[domain.Kind]*domain.AnalysisResult

// DefaultFallbacks returns the built-in conservative placeholders.
func DefaultFallbacks() FallbackSet {
	retryLater := "The analysis service is temporarily unavailable. Please try again later."

	return FallbackSet{
		domain.KindToxicity: {
			Kind: domain.KindToxicity,
			Toxicity: &domain.ToxicityResult{
				ToxicityScore:  5,
				RedFlags:       []string{},
				Patterns:       []domain.ManipulationPattern{},
				UrgencyLevel:   domain.UrgencyMedium,
				Confidence:     0.0,
				Analysis:       retryLater,
				Recommendation: "Repeat the analysis in a few minutes. If you feel unsafe, contact a support hotline.",
			},
		},
		domain.KindPartnerProfile: {
			Kind: domain.KindPartnerProfile,
			Profile: &domain.PartnerProfileResult{
				Narrative:        retryLater,
				OverallRiskScore: 50,
				UrgencyLevel:     domain.UrgencyMedium,
				BlockScores: map[domain.Block]float64{
					domain.BlockNarcissism:  5,
					domain.BlockControl:     5,
					domain.BlockGaslighting: 5,
					domain.BlockEmotion:     5,
					domain.BlockIntimacy:    5,
					domain.BlockSocial:      5,
				},
				RedFlags:        []string{},
				Strengths:       []string{},
				Recommendations: []string{"Repeat the analysis in a few minutes."},
				Confidence:      0.0,
			},
		},
		domain.KindCompatibility: {
			Kind: domain.KindCompatibility,
			Compatibility: &domain.CompatibilityResult{
				OverallScore: 5,
				Dimensions: map[domain.Dimension]float64{
					domain.DimensionCommunication: 5,
					domain.DimensionValues:        5,
					domain.DimensionLifestyle:     5,
					domain.DimensionEmotional:     5,
				},
				Strengths:       []string{},
				Challenges:      []string{},
				Recommendations: []string{"Repeat the test in a few minutes."},
				Summary:         retryLater,
			},
		},
		domain.KindPersonalityType: {
			Kind: domain.KindPersonalityType,
			Personality: &domain.PersonalityTypeResult{
				Type:        domain.PersonalityAdaptive,
				Description: retryLater,
				Traits:      []string{},
				Confidence:  0.0,
			},
		},
		domain.KindChatTurn: {
			Kind: domain.KindChatTurn,
			Chat: &domain.ChatResult{Reply: retryLater},
		},
	}
}

// Override replaces the fallback for kind with a raw object validated like a
// provider response.
func (s FallbackSet) Override(v ResultValidator, kind domain.Kind, raw map[string]any) error {
	result, err := v.Validate(kind, raw)
	if err != nil {
		return fmt.Errorf("fallback for %s: %w", kind, err)
	}
	s[kind] = result
	return nil
}

// For returns a degraded copy of the fallback for kind.
func (s FallbackSet) For(kind domain.Kind) *domain.AnalysisResult {
	base, ok := s[kind]
	if !ok {
		base = DefaultFallbacks()[kind]
	}

	result := base.Clone()
	result.Kind = kind
	result.Meta = domain.Meta{Source: domain.SourceFallback, Degraded: true}
	return result
}
