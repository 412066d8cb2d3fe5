package service

import (
	"context"

	"github.com/psychodetective/internal/domain"
)

// PersonalityService classifies the user's own personality type.
type PersonalityService struct {
	*pipeline
}

// NewPersonalityService creates a new PersonalityService.
func NewPersonalityService(deps Deps) *PersonalityService {
	return &PersonalityService{pipeline: newPipeline(deps, "personality")}
}

// Classify maps questionnaire answers to one of the closed personality types.
func (s *PersonalityService) Classify(ctx context.Context, userID int64, answers map[string]string) (*domain.AnalysisResponse, error) {
	clean, err := s.cleanAnswers("personality", answers)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, domain.PersonalityPayload{Answers: clean}, nil, runOpts{cacheable: true, persist: true})
}
