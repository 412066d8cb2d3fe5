package service

import (
	"context"

	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/report"
)

// CompatibilityResponse is a compatibility result with its report data.
type CompatibilityResponse struct {
	Analysis *domain.AnalysisResponse  `json:"analysis"`
	Report   *report.CompatibilityData `json:"report"`
}

// CompatibilityService compares the user's and the partner's answers.
type CompatibilityService struct {
	*pipeline
}

// NewCompatibilityService creates a new CompatibilityService.
func NewCompatibilityService(deps Deps) *CompatibilityService {
	return &CompatibilityService{pipeline: newPipeline(deps, "compatibility")}
}

// Assess scores compatibility across the four dimensions.
func (s *CompatibilityService) Assess(ctx context.Context, userID int64, userAnswers, partnerAnswers map[string]string) (*CompatibilityResponse, error) {
	ua, err := s.cleanAnswers("user", userAnswers)
	if err != nil {
		return nil, err
	}
	pa, err := s.cleanAnswers("partner", partnerAnswers)
	if err != nil {
		return nil, err
	}

	resp, err := s.run(ctx, userID, domain.CompatibilityPayload{UserAnswers: ua, PartnerAnswers: pa}, nil, runOpts{cacheable: true, persist: true})
	if err != nil {
		return nil, err
	}

	data, err := report.FromCompatibility(userID, resp.Result, s.now())
	if err != nil {
		return nil, err
	}

	return &CompatibilityResponse{Analysis: resp, Report: data}, nil
}
