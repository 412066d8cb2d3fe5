package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/psychodetective/internal/domain"
)

// DefaultValidator implements ResultValidator with strict schema checks.
// Out-of-range values are rejected, never clamped.
type DefaultValidator struct{}

// NewDefaultValidator creates a new result validator.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{}
}

// Validate checks raw against the kind schema and builds the typed result.
func (v *DefaultValidator) Validate(kind domain.Kind, raw map[string]any) (*domain.AnalysisResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: %s: result is nil", domain.ErrSchemaViolation, kind)
	}

	f := &fields{kind: kind, raw: raw}
	result := &domain.AnalysisResult{Kind: kind}

	switch kind {
	case domain.KindToxicity:
		result.Toxicity = validateToxicity(f)
	case domain.KindPartnerProfile:
		result.Profile = validateProfile(f)
	case domain.KindCompatibility:
		result.Compatibility = validateCompatibility(f)
	case domain.KindPersonalityType:
		result.Personality = validatePersonality(f)
	case domain.KindChatTurn:
		result.Chat = &domain.ChatResult{Reply: f.text("reply")}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrSchemaViolation, kind)
	}

	if f.err != nil {
		return nil, f.err
	}
	return result, nil
}

func validateToxicity(f *fields) *domain.ToxicityResult {
	r := &domain.ToxicityResult{
		ToxicityScore:  f.integer("toxicity_score", 1, 10),
		RedFlags:       f.textList("red_flags"),
		UrgencyLevel:   domain.Urgency(f.enum("urgency_level")),
		Confidence:     f.number("confidence", 0, 1),
		Analysis:       f.text("analysis"),
		Recommendation: f.text("recommendation"),
	}
	if f.err == nil && !r.UrgencyLevel.IsValid() {
		f.fail("urgency_level must be low, medium, high or critical, got: %s", r.UrgencyLevel)
	}

	patterns := f.optionalTextList("patterns")
	r.Patterns = make([]domain.ManipulationPattern, 0, len(patterns))
	for _, p := range patterns {
		pattern := domain.ManipulationPattern(normalizeEnum(p))
		if !pattern.IsValid() {
			f.fail("unknown manipulation pattern: %s", p)
			break
		}
		r.Patterns = append(r.Patterns, pattern)
	}
	return r
}

func validateProfile(f *fields) *domain.PartnerProfileResult {
	r := &domain.PartnerProfileResult{
		Narrative:        f.text("narrative"),
		OverallRiskScore: f.number("overall_risk_score", 0, 100),
		UrgencyLevel:     domain.Urgency(f.enum("urgency_level")),
		RedFlags:         f.textList("red_flags"),
		Strengths:        f.optionalTextList("strengths"),
		Recommendations:  f.textList("recommendations"),
		Confidence:       f.number("confidence", 0, 1),
	}
	if f.err == nil && !r.UrgencyLevel.IsValid() {
		f.fail("urgency_level must be low, medium, high or critical, got: %s", r.UrgencyLevel)
	}

	r.BlockScores = numberMap(f, "block_scores", domain.Blocks, 0, 10)
	return r
}

func validateCompatibility(f *fields) *domain.CompatibilityResult {
	r := &domain.CompatibilityResult{
		OverallScore:    f.number("overall_score", 1, 10),
		Strengths:       f.optionalTextList("strengths"),
		Challenges:      f.optionalTextList("challenges"),
		Recommendations: f.optionalTextList("recommendations"),
		Summary:         f.text("summary"),
	}

	r.Dimensions = numberMap(f, "dimensions", domain.Dimensions, 1, 10)
	return r
}

// ambiguousLabels are provider labels that mean no single type fits.
var ambiguousLabels = map[string]bool{
	"ambiguous": true,
	"mixed":     true,
}

func validatePersonality(f *fields) *domain.PersonalityTypeResult {
	r := &domain.PersonalityTypeResult{
		Description: f.text("description"),
		Traits:      f.optionalTextList("traits"),
		Confidence:  f.number("confidence", 0, 1),
	}

	label := f.enum("type")
	switch {
	case f.err != nil:
	case ambiguousLabels[label]:
		r.Type = domain.PersonalityAdaptive
	case domain.PersonalityType(label).IsValid():
		r.Type = domain.PersonalityType(label)
	default:
		f.fail("unknown personality type: %s", label)
	}
	return r
}

// fields reads typed values out of a decoded JSON object and keeps the first
// violation.
type fields struct {
	kind domain.Kind
	raw  map[string]any
	err  error
}

func (f *fields) fail(format string, args ...any) {
	if f.err != nil {
		return
	}
	f.err = fmt.Errorf("%w: %s: %s", domain.ErrSchemaViolation, f.kind, fmt.Sprintf(format, args...))
}

func (f *fields) get(name string) (any, bool) {
	v, ok := f.raw[name]
	if !ok || v == nil {
		f.fail("%s is required", name)
		return nil, false
	}
	return v, true
}

// text reads a required non-empty string.
func (f *fields) text(name string) string {
	v, ok := f.get(name)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail("%s must be a string", name)
		return ""
	}
	if strings.TrimSpace(s) == "" {
		f.fail("%s must not be empty", name)
		return ""
	}
	return s
}

// enum reads a required enum string, case-insensitively.
func (f *fields) enum(name string) string {
	return normalizeEnum(f.text(name))
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// textList reads a required array of non-empty strings; the array may be empty.
func (f *fields) textList(name string) []string {
	if _, ok := f.get(name); !ok {
		return nil
	}
	return f.optionalTextList(name)
}

// optionalTextList reads an array of non-empty strings, empty when absent.
func (f *fields) optionalTextList(name string) []string {
	v, ok := f.raw[name]
	if !ok || v == nil {
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		f.fail("%s must be an array", name)
		return []string{}
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			f.fail("%s[%d] must be a non-empty string", name, i)
			return []string{}
		}
		out = append(out, s)
	}
	return out
}

func (f *fields) number(name string, min, max float64) float64 {
	v, ok := f.get(name)
	if !ok {
		return 0
	}
	return f.checkNumber(name, v, min, max)
}

func (f *fields) checkNumber(name string, v any, min, max float64) float64 {
	n, ok := toFloat(v)
	if !ok {
		f.fail("%s must be a number", name)
		return 0
	}
	if n < min || n > max {
		f.fail("%s must be in [%g, %g], got: %g", name, min, max, n)
		return 0
	}
	return n
}

func (f *fields) integer(name string, min, max int) int {
	n := f.number(name, float64(min), float64(max))
	if f.err != nil {
		return 0
	}
	if n != math.Trunc(n) {
		f.fail("%s must be an integer, got: %g", name, n)
		return 0
	}
	return int(n)
}

// numberMap reads an object that must hold every key with a number in range.
func numberMap[K ~string](f *fields, name string, keys []K, min, max float64) map[K]float64 {
	v, ok := f.get(name)
	if !ok {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		f.fail("%s must be an object", name)
		return nil
	}

	out := make(map[K]float64, len(keys))
	for _, key := range keys {
		raw, ok := obj[string(key)]
		if !ok || raw == nil {
			f.fail("%s.%s is required", name, key)
			return nil
		}
		out[key] = f.checkNumber(name+"."+string(key), raw, min, max)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
