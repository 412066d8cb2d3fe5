// Package report assembles the plain data handed to the PDF renderer.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/psychodetective/internal/domain"
)

// Risk levels shown in reports.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// Compatibility levels shown in reports.
const (
	CompatibilityExcellent    = "excellent"
	CompatibilityGood         = "good"
	CompatibilityAverage      = "average"
	CompatibilityBelowAverage = "below_average"
	CompatibilityLow          = "low"
)

var blockNames = map[domain.Block]string{
	domain.BlockNarcissism:  "Нарциссизм",
	domain.BlockControl:     "Контроль",
	domain.BlockGaslighting: "Газлайтинг",
	domain.BlockEmotion:     "Эмоциональное воздействие",
	domain.BlockIntimacy:    "Интимность",
	domain.BlockSocial:      "Социальное влияние",
}

var dimensionNames = map[domain.Dimension]string{
	domain.DimensionCommunication: "Общение",
	domain.DimensionValues:        "Ценности",
	domain.DimensionLifestyle:     "Образ жизни",
	domain.DimensionEmotional:     "Эмоциональная близость",
}

// MaxTopConcerns caps the blocks highlighted as top concerns.
const MaxTopConcerns = 3

// Score is one labelled 0-10 bar in a report.
type Score struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	Level        string  `json:"level"`
	WidthPercent int     `json:"width_percent"`
}

// Data is the partner profile report payload.
type Data struct {
	ReportID        string               `json:"report_id"`
	Date            string               `json:"date"`
	PartnerName     string               `json:"partner_name"`
	RiskScore       int                  `json:"risk_score"`
	RiskLevel       string               `json:"risk_level"`
	RiskColor       string               `json:"risk_color"`
	UrgencyLevel    domain.Urgency       `json:"urgency_level"`
	UrgencyEmoji    string               `json:"urgency_emoji"`
	Narrative       string               `json:"narrative"`
	RedFlags        []string             `json:"red_flags"`
	Strengths       []string             `json:"strengths"`
	Recommendations []string             `json:"recommendations"`
	Blocks          []Score              `json:"blocks"`
	TopConcerns     []Score              `json:"top_concerns"`
	PersonalityType string               `json:"personality_type,omitempty"`
	Alerts          []domain.SafetyAlert `json:"alerts,omitempty"`
	Degraded        bool                 `json:"degraded"`
}

// CompatibilityData is the compatibility report payload.
type CompatibilityData struct {
	ReportID        string   `json:"report_id"`
	Date            string   `json:"date"`
	OverallScore    float64  `json:"overall_score"`
	Level           string   `json:"level"`
	Dimensions      []Score  `json:"dimensions"`
	Strengths       []string `json:"strengths"`
	Challenges      []string `json:"challenges"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	Degraded        bool     `json:"degraded"`
}

// RiskLevel maps a 0-100 risk score to a level.
func RiskLevel(score float64) string {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskColor returns the badge color for a 0-100 risk score.
func RiskColor(score float64) string {
	switch RiskLevel(score) {
	case RiskCritical:
		return "#dc3545"
	case RiskHigh:
		return "#fd7e14"
	case RiskMedium:
		return "#ffc107"
	default:
		return "#28a745"
	}
}

// ScoreLevel maps a 0-10 block score to a level.
func ScoreLevel(score float64) string {
	switch {
	case score >= 8:
		return RiskCritical
	case score >= 6:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// UrgencyEmoji returns the indicator for an urgency level.
func UrgencyEmoji(u domain.Urgency) string {
	switch u {
	case domain.UrgencyCritical:
		return "🚨"
	case domain.UrgencyHigh:
		return "🔴"
	case domain.UrgencyMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// CompatibilityLevel maps a 0-10 compatibility score to a level.
func CompatibilityLevel(score float64) string {
	switch {
	case score >= 8.5:
		return CompatibilityExcellent
	case score >= 7:
		return CompatibilityGood
	case score >= 5.5:
		return CompatibilityAverage
	case score >= 4:
		return CompatibilityBelowAverage
	default:
		return CompatibilityLow
	}
}

// ReportID builds a stable report identifier for a user and date.
func ReportID(userID int64, at time.Time) string {
	return fmt.Sprintf("RPT-%s-%d", at.Format("02012006"), userID)
}

// FromProfile builds the partner profile report. personality may be nil.
func FromProfile(userID int64, partnerName string, profile *domain.AnalysisResult, personality *domain.AnalysisResult, alerts []domain.SafetyAlert, at time.Time) (*Data, error) {
	if profile == nil || profile.Profile == nil {
		return nil, fmt.Errorf("report: %w: profile result missing", domain.ErrInvalidOperation)
	}
	p := profile.Profile

	data := &Data{
		ReportID:        ReportID(userID, at),
		Date:            at.Format("02.01.2006"),
		PartnerName:     partnerName,
		RiskScore:       int(math.Round(p.OverallRiskScore)),
		RiskLevel:       RiskLevel(p.OverallRiskScore),
		RiskColor:       RiskColor(p.OverallRiskScore),
		UrgencyLevel:    p.UrgencyLevel,
		UrgencyEmoji:    UrgencyEmoji(p.UrgencyLevel),
		Narrative:       p.Narrative,
		RedFlags:        nonNil(p.RedFlags),
		Strengths:       nonNil(p.Strengths),
		Recommendations: nonNil(p.Recommendations),
		Alerts:          alerts,
		Degraded:        profile.Meta.Degraded,
	}

	for _, b := range domain.Blocks {
		score, ok := p.BlockScores[b]
		if !ok {
			continue
		}
		data.Blocks = append(data.Blocks, newScore(string(b), blockNames[b], score, ScoreLevel(score)))
	}

	data.TopConcerns = []Score{}
	for _, s := range data.TopBlocks(MaxTopConcerns) {
		if s.Score >= 6 {
			data.TopConcerns = append(data.TopConcerns, s)
		}
	}

	if personality != nil && personality.Personality != nil {
		data.PersonalityType = string(personality.Personality.Type)
		data.Degraded = data.Degraded || personality.Meta.Degraded
	}

	return data, nil
}

// FromCompatibility builds the compatibility report.
func FromCompatibility(userID int64, result *domain.AnalysisResult, at time.Time) (*CompatibilityData, error) {
	if result == nil || result.Compatibility == nil {
		return nil, fmt.Errorf("report: %w: compatibility result missing", domain.ErrInvalidOperation)
	}
	c := result.Compatibility

	data := &CompatibilityData{
		ReportID:        ReportID(userID, at),
		Date:            at.Format("02.01.2006"),
		OverallScore:    c.OverallScore,
		Level:           CompatibilityLevel(c.OverallScore),
		Strengths:       nonNil(c.Strengths),
		Challenges:      nonNil(c.Challenges),
		Recommendations: nonNil(c.Recommendations),
		Summary:         c.Summary,
		Degraded:        result.Meta.Degraded,
	}

	for _, d := range domain.Dimensions {
		score, ok := c.Dimensions[d]
		if !ok {
			continue
		}
		data.Dimensions = append(data.Dimensions, newScore(string(d), dimensionNames[d], score, CompatibilityLevel(score)))
	}

	return data, nil
}

// TopBlocks returns the n highest-scoring blocks, highest first.
func (d *Data) TopBlocks(n int) []Score {
	out := append([]Score(nil), d.Blocks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func newScore(key, name string, score float64, level string) Score {
	return Score{
		Key:          key,
		Name:         name,
		Score:        score,
		Level:        level,
		WidthPercent: int(math.Round(score * 10)),
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
