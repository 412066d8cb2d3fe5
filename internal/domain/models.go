// Package domain contains the core domain models and types.
// These models represent the business logic contracts and are independent
// of any infrastructure concerns.
package domain

import "time"

// Urgency represents how quickly the user should act on an analysis.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// IsValid checks if the urgency value is one of the allowed values.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// ManipulationPattern is a named manipulation technique detected in text.
type ManipulationPattern string

const (
	PatternGaslighting        ManipulationPattern = "gaslighting"
	PatternEmotionalBlackmail ManipulationPattern = "emotional_blackmail"
	PatternGuiltTripping      ManipulationPattern = "guilt_tripping"
	PatternIsolation          ManipulationPattern = "isolation"
	PatternControl            ManipulationPattern = "control"
	PatternDevaluation        ManipulationPattern = "devaluation"
	PatternLoveBombing        ManipulationPattern = "love_bombing"
	PatternSilentTreatment    ManipulationPattern = "silent_treatment"
	PatternThreats            ManipulationPattern = "threats"
	PatternJealousy           ManipulationPattern = "jealousy"
)

// ManipulationPatterns lists every recognized pattern.
var ManipulationPatterns = []ManipulationPattern{
	PatternGaslighting, PatternEmotionalBlackmail, PatternGuiltTripping, PatternIsolation, PatternControl,
	PatternDevaluation, PatternLoveBombing, PatternSilentTreatment, PatternThreats, PatternJealousy,
}

// IsValid checks if the pattern is in the recognized set.
func (p ManipulationPattern) IsValid() bool {
	for _, known := range ManipulationPatterns {
		if p == known {
			return true
		}
	}
	return false
}

// Block is a partner profile scoring category.
type Block string

const (
	BlockNarcissism  Block = "narcissism"
	BlockControl     Block = "control"
	BlockGaslighting Block = "gaslighting"
	BlockEmotion     Block = "emotion"
	BlockIntimacy    Block = "intimacy"
	BlockSocial      Block = "social"
)

// Blocks lists every profile block in report order.
var Blocks = []Block{BlockNarcissism, BlockControl, BlockGaslighting, BlockEmotion, BlockIntimacy, BlockSocial}

// Dimension is a compatibility scoring axis.
type Dimension string

const (
	DimensionCommunication Dimension = "communication"
	DimensionValues        Dimension = "values"
	DimensionLifestyle     Dimension = "lifestyle"
	DimensionEmotional     Dimension = "emotional"
)

// Dimensions lists every compatibility dimension.
var Dimensions = []Dimension{DimensionCommunication, DimensionValues, DimensionLifestyle, DimensionEmotional}

// PersonalityType is a label from the closed personality type set.
type PersonalityType string

const (
	PersonalityEmpath     PersonalityType = "empath"
	PersonalityAnalyst    PersonalityType = "analyst"
	PersonalityDefender   PersonalityType = "defender"
	PersonalityHarmonizer PersonalityType = "harmonizer"

	// PersonalityAdaptive is the designated label for ambiguous answers.
	PersonalityAdaptive PersonalityType = "adaptive"
)

// PersonalityTypes lists every personality type.
var PersonalityTypes = []PersonalityType{
	PersonalityEmpath, PersonalityAnalyst, PersonalityDefender, PersonalityHarmonizer, PersonalityAdaptive,
}

// IsValid checks if the type is in the closed set.
func (t PersonalityType) IsValid() bool {
	switch t {
	case PersonalityEmpath, PersonalityAnalyst, PersonalityDefender, PersonalityHarmonizer, PersonalityAdaptive:
		return true
	default:
		return false
	}
}

// Source names who produced a result.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceFallback  Source = "fallback"
)

// ToxicityResult is the outcome of a free-text toxicity analysis.
type ToxicityResult struct {
	ToxicityScore  int                   `json:"toxicity_score"`
	RedFlags       []string              `json:"red_flags"`
	Patterns       []ManipulationPattern `json:"patterns"`
	UrgencyLevel   Urgency               `json:"urgency_level"`
	Confidence     float64               `json:"confidence"`
	Analysis       string                `json:"analysis"`
	Recommendation string                `json:"recommendation"`
}

// PartnerProfileResult is the outcome of a partner questionnaire analysis.
type PartnerProfileResult struct {
	Narrative        string            `json:"narrative"`
	OverallRiskScore float64           `json:"overall_risk_score"`
	UrgencyLevel     Urgency           `json:"urgency_level"`
	BlockScores      map[Block]float64 `json:"block_scores"`
	RedFlags         []string          `json:"red_flags"`
	Strengths        []string          `json:"strengths"`
	Recommendations  []string          `json:"recommendations"`
	Confidence       float64           `json:"confidence"`
}

// CompatibilityResult is the outcome of a two-sided compatibility test.
type CompatibilityResult struct {
	OverallScore    float64               `json:"overall_score"`
	Dimensions      map[Dimension]float64 `json:"dimensions"`
	Strengths       []string              `json:"strengths"`
	Challenges      []string              `json:"challenges"`
	Recommendations []string              `json:"recommendations"`
	Summary         string                `json:"summary"`
}

// PersonalityTypeResult is the outcome of a personality classification.
type PersonalityTypeResult struct {
	Type        PersonalityType `json:"type"`
	Description string          `json:"description"`
	Traits      []string        `json:"traits"`
	Confidence  float64         `json:"confidence"`
}

// ChatResult is a single consultation reply.
type ChatResult struct {
	Reply string `json:"reply"`
}

// Meta describes how a result was produced.
type Meta struct {
	Source            Source        `json:"source"`
	Provider          string        `json:"provider,omitempty"`
	Model             string        `json:"model,omitempty"`
	PrimaryAttempts   int           `json:"primary_attempts"`
	SecondaryAttempts int           `json:"secondary_attempts"`
	Latency           time.Duration `json:"latency"`
	Degraded          bool          `json:"degraded"`
	FailureReason     FailureReason `json:"failure_reason,omitempty"`
}

// AnalysisResult is the tagged result of an operation. Exactly one variant
// matching Kind is set.
type AnalysisResult struct {
	Kind          Kind                   `json:"kind"`
	Toxicity      *ToxicityResult        `json:"toxicity,omitempty"`
	Profile       *PartnerProfileResult  `json:"profile,omitempty"`
	Compatibility *CompatibilityResult   `json:"compatibility,omitempty"`
	Personality   *PersonalityTypeResult `json:"personality,omitempty"`
	Chat          *ChatResult            `json:"chat,omitempty"`
	Meta          Meta                   `json:"meta"`
}

// Clone returns a deep copy of the result.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := &AnalysisResult{Kind: r.Kind, Meta: r.Meta}
	if r.Toxicity != nil {
		t := *r.Toxicity
		t.RedFlags = cloneStrings(t.RedFlags)
		t.Patterns = append([]ManipulationPattern(nil), t.Patterns...)
		out.Toxicity = &t
	}
	if r.Profile != nil {
		p := *r.Profile
		p.BlockScores = make(map[Block]float64, len(r.Profile.BlockScores))
		for k, v := range r.Profile.BlockScores {
			p.BlockScores[k] = v
		}
		p.RedFlags = cloneStrings(p.RedFlags)
		p.Strengths = cloneStrings(p.Strengths)
		p.Recommendations = cloneStrings(p.Recommendations)
		out.Profile = &p
	}
	if r.Compatibility != nil {
		c := *r.Compatibility
		c.Dimensions = make(map[Dimension]float64, len(r.Compatibility.Dimensions))
		for k, v := range r.Compatibility.Dimensions {
			c.Dimensions[k] = v
		}
		c.Strengths = cloneStrings(c.Strengths)
		c.Challenges = cloneStrings(c.Challenges)
		c.Recommendations = cloneStrings(c.Recommendations)
		out.Compatibility = &c
	}
	if r.Personality != nil {
		p := *r.Personality
		p.Traits = cloneStrings(p.Traits)
		out.Personality = &p
	}
	if r.Chat != nil {
		c := *r.Chat
		out.Chat = &c
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// SafetyAlert is raised when user text contains crisis signals.
type SafetyAlert struct {
	// RuleID is the identifier of the matched safety rule.
	RuleID string `json:"rule_id"`

	// Category is the crisis category, e.g. violence or self_harm.
	Category string `json:"category"`

	// Message is the guidance shown to the user.
	Message string `json:"message"`

	// Hotlines lists support phone numbers for the category.
	Hotlines []string `json:"hotlines"`
}

// AnalysisResponse wraps a result with caller-level metadata.
type AnalysisResponse struct {
	// ID is the stored record identifier, empty when persistence is disabled.
	ID string `json:"id,omitempty"`

	// Result is the validated or fallback analysis.
	Result *AnalysisResult `json:"result"`

	// Alerts lists crisis alerts detected in the input.
	Alerts []SafetyAlert `json:"alerts,omitempty"`

	// Critical is set when an alert points to emergency services.
	Critical bool `json:"critical,omitempty"`

	// Cached reports whether the result was served from cache.
	Cached bool `json:"cached"`

	// ProcessedAt is the timestamp when the analysis was completed.
	ProcessedAt time.Time `json:"processed_at"`
}
