// Package service contains the caller services that turn user input into
// orchestrator operations and persist the results.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/cache"
	"github.com/psychodetective/internal/config"
	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/rules"
	"github.com/psychodetective/internal/store"
	"github.com/psychodetective/pkg/sanitizer"
)

// Invoker runs one AI operation.
type Invoker interface {
	Invoke(ctx context.Context, op domain.Operation) (*domain.AnalysisResult, error)
}

// ResultCache stores validated results.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.AnalysisResult, error)
	Set(ctx context.Context, key string, result *domain.AnalysisResult) error
}

// Repository persists analyses.
type Repository interface {
	Save(ctx context.Context, userID int64, payload domain.Payload, result *domain.AnalysisResult, alerts []domain.SafetyAlert) (*store.AnalysisRecord, error)
	Get(ctx context.Context, id string) (*store.AnalysisRecord, error)
	ListByUser(ctx context.Context, userID int64, kind domain.Kind, limit int) ([]store.AnalysisRecord, error)
	CountByUser(ctx context.Context, userID int64) (map[domain.Kind]int, error)
}

// Metrics records service-level events.
type Metrics interface {
	RecordCacheLookup(kind domain.Kind, hit bool)
	RecordSafetyAlerts(alerts []domain.SafetyAlert)
}

// Deps are shared by all caller services. Cache, Store and Metrics are optional.
type Deps struct {
	Invoker   Invoker
	Profile   *config.Profile
	Sanitizer *sanitizer.Sanitizer
	Rules     *rules.Engine
	Cache     ResultCache
	Store     Repository
	Metrics   Metrics
	Logger    *zap.Logger
}

type pipeline struct {
	invoker   Invoker
	profile   *config.Profile
	sanitizer *sanitizer.Sanitizer
	rules     *rules.Engine
	cache     ResultCache
	store     Repository
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func newPipeline(deps Deps, name string) *pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Profile == nil {
		deps.Profile = config.DefaultProfile()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitizer.New(sanitizer.DefaultMinLength, sanitizer.DefaultMaxLength)
	}
	if deps.Rules == nil {
		deps.Rules = rules.NewEngine(nil, false, deps.Logger)
	}
	return &pipeline{
		invoker:   deps.Invoker,
		profile:   deps.Profile,
		sanitizer: deps.Sanitizer,
		rules:     deps.Rules,
		cache:     deps.Cache,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named(name),
		now:       time.Now,
	}
}

type runOpts struct {
	cacheable bool
	persist   bool
}

// run invokes one operation with caching and persistence around it.
// Cache hits are persisted too, so every request gets a history entry.
func (p *pipeline) run(ctx context.Context, userID int64, payload domain.Payload, alerts []domain.SafetyAlert, opts runOpts) (*domain.AnalysisResponse, error) {
	start := p.now()
	kind := payload.Kind()
	logger := p.logger.With(zap.Int64("user_id", userID), zap.String("kind", string(kind)))

	resp := &domain.AnalysisResponse{
		Alerts:   alerts,
		Critical: rules.HasCritical(alerts),
	}
	if len(alerts) > 0 && p.metrics != nil {
		p.metrics.RecordSafetyAlerts(alerts)
	}
	if resp.Critical {
		logger.Warn("critical safety alert, emergency hotline attached", zap.Int("alerts", len(alerts)))
	}

	var key string
	if opts.cacheable && p.cache != nil {
		k, err := cache.Key(userID, kind, payload)
		if err != nil {
			logger.Warn("cache key failed", zap.Error(err))
		} else {
			key = k
			if hit := p.lookup(ctx, key, kind, logger); hit != nil {
				resp.Result = hit
				resp.Cached = true
			}
		}
	}

	if resp.Result == nil {
		budget := p.profile.Operation(kind)
		result, err := p.invoker.Invoke(ctx, domain.Operation{
			Kind:        kind,
			Payload:     payload,
			MaxTokens:   budget.MaxTokens,
			Temperature: budget.Temperature,
		})
		if err != nil {
			logger.Warn("analysis rejected", zap.Error(err))
			return nil, domain.WrapError(string(kind), err)
		}
		resp.Result = result

		if key != "" && !result.Meta.Degraded {
			if err := p.cache.Set(ctx, key, result); err != nil {
				logger.Warn("cache store failed", zap.Error(err))
			}
		}
	}

	if opts.persist && p.store != nil {
		rec, err := p.store.Save(ctx, userID, payload, resp.Result, alerts)
		if err != nil {
			// The user still gets the analysis.
			logger.Error("failed to persist analysis", zap.Error(err))
		} else {
			resp.ID = rec.ID
		}
	}
	resp.ProcessedAt = p.now()

	logger.Info("analysis completed",
		zap.String("source", string(resp.Result.Meta.Source)),
		zap.Bool("degraded", resp.Result.Meta.Degraded),
		zap.Bool("cached", resp.Cached),
		zap.Int("alerts", len(alerts)),
		zap.Duration("duration", p.now().Sub(start)),
	)

	return resp, nil
}

func (p *pipeline) lookup(ctx context.Context, key string, kind domain.Kind, logger *zap.Logger) *domain.AnalysisResult {
	cached, err := p.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache lookup failed", zap.Error(err))
	}
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(kind, cached != nil)
	}
	return cached
}

// clean sanitizes user text and maps sanitizer errors to domain errors.
func (p *pipeline) clean(s *sanitizer.Sanitizer, field, text string) (string, error) {
	out, err := s.Sanitize(text)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, sanitizer.ErrEmpty):
		return "", fmt.Errorf("%s: %w", field, domain.ErrEmptyText)
	case errors.Is(err, sanitizer.ErrTooShort):
		return "", fmt.Errorf("%s: %w", field, domain.ErrTextTooShort)
	case errors.Is(err, sanitizer.ErrTooLong):
		return "", fmt.Errorf("%s: %w", field, domain.ErrTextTooLong)
	default:
		return "", fmt.Errorf("%s: %w", field, err)
	}
}

// loose returns a sanitizer for short answers and chat messages.
func (p *pipeline) loose() *sanitizer.Sanitizer {
	return p.sanitizer.WithLimits(1, p.sanitizer.MaxLength())
}

// cleanAnswers sanitizes a questionnaire answer map.
func (p *pipeline) cleanAnswers(side string, answers map[string]string) (map[string]string, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: %s answers are required", domain.ErrInvalidOperation, side)
	}
	s := p.loose()
	out := make(map[string]string, len(answers))
	for id, answer := range answers {
		clean, err := p.clean(s, side+" answer "+id, answer)
		if err != nil {
			return nil, err
		}
		out[id] = clean
	}
	return out, nil
}

// IsInputError reports whether err was caused by invalid user input.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrInvalidOperation) ||
		errors.Is(err, domain.ErrEmptyText) ||
		errors.Is(err, domain.ErrTextTooShort) ||
		errors.Is(err, domain.ErrTextTooLong)
}
