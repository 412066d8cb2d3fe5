package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/report"
)

// MinProfileAnswers is the smallest questionnaire accepted for a profile.
const MinProfileAnswers = 5

// ProfileRequest is a completed partner questionnaire.
type ProfileRequest struct {
	PartnerName string          `json:"partner_name"`
	Description string          `json:"description,omitempty"`
	Answers     []domain.Answer `json:"answers"`
}

// ProfileResponse combines the partner profile, the partner's personality
// type and the report data built from both.
type ProfileResponse struct {
	Profile     *domain.AnalysisResponse `json:"profile"`
	Personality *domain.AnalysisResult   `json:"personality,omitempty"`
	Report      *report.Data             `json:"report"`
}

// Profiler builds partner profiles from questionnaire answers.
type Profiler struct {
	*pipeline
}

// NewProfiler creates a new Profiler.
func NewProfiler(deps Deps) *Profiler {
	return &Profiler{pipeline: newPipeline(deps, "profiler")}
}

// BuildProfile runs the partner profile and the personality type operations
// concurrently and assembles the report data.
func (p *Profiler) BuildProfile(ctx context.Context, userID int64, req ProfileRequest) (*ProfileResponse, error) {
	payload, err := p.preparePayload(req)
	if err != nil {
		return nil, err
	}

	texts := []string{req.Description}
	for _, a := range req.Answers {
		texts = append(texts, a.Answer)
	}
	alerts := p.rules.AnalyzeAll(texts...)

	answers := make(map[string]string, len(payload.Answers))
	for _, a := range payload.Answers {
		answers[a.QuestionID] = a.Answer
	}

	var (
		profileResp *domain.AnalysisResponse
		personality *domain.AnalysisResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := p.run(gctx, userID, payload, alerts, runOpts{cacheable: true, persist: true})
		profileResp = resp
		return err
	})
	g.Go(func() error {
		resp, err := p.run(gctx, userID, domain.PersonalityPayload{Answers: answers}, nil, runOpts{cacheable: true})
		if err != nil {
			// The profile stands on its own.
			p.logger.Warn("personality type skipped", zap.Error(err))
			return nil
		}
		personality = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ProfileResponse{Profile: profileResp}
	var personalityResult *domain.AnalysisResult
	if personality != nil {
		personalityResult = personality.Result
		out.Personality = personalityResult
	}

	data, err := report.FromProfile(userID, payload.PartnerName, profileResp.Result, personalityResult, alerts, p.now())
	if err != nil {
		return nil, err
	}
	out.Report = data

	return out, nil
}

func (p *Profiler) preparePayload(req ProfileRequest) (domain.ProfilePayload, error) {
	name := strings.TrimSpace(req.PartnerName)
	if name == "" {
		return domain.ProfilePayload{}, fmt.Errorf("partner name: %w", domain.ErrEmptyText)
	}
	if len(req.Answers) < MinProfileAnswers {
		return domain.ProfilePayload{}, fmt.Errorf("%w: at least %d answers required, got %d",
			domain.ErrInvalidOperation, MinProfileAnswers, len(req.Answers))
	}

	loose := p.loose()

	payload := domain.ProfilePayload{
		PartnerName: loose.Mask(name),
		Answers:     make([]domain.Answer, 0, len(req.Answers)),
	}

	if strings.TrimSpace(req.Description) != "" {
		desc, err := p.clean(loose, "description", req.Description)
		if err != nil {
			return domain.ProfilePayload{}, err
		}
		payload.Description = desc
	}

	seen := make(map[string]bool, len(req.Answers))
	for i, a := range req.Answers {
		id := strings.TrimSpace(a.QuestionID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		if seen[id] {
			return domain.ProfilePayload{}, fmt.Errorf("%w: duplicate question id %q", domain.ErrInvalidOperation, id)
		}
		seen[id] = true

		answer, err := p.clean(loose, "answer "+id, a.Answer)
		if err != nil {
			return domain.ProfilePayload{}, err
		}
		payload.Answers = append(payload.Answers, domain.Answer{
			QuestionID: id,
			Question:   strings.TrimSpace(a.Question),
			Answer:     answer,
			Block:      a.Block,
		})
	}

	return payload, nil
}
