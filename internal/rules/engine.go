package rules

import (
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

// Engine applies crisis rules to user text.
type Engine struct {
	rules   []*Rule
	enabled bool
	logger  *zap.Logger
}

// NewEngine creates a rule engine. A disabled engine never raises alerts.
func NewEngine(rules []*Rule, enabled bool, logger *zap.Logger) *Engine {
	return &Engine{
		rules:   rules,
		enabled: enabled,
		logger:  logger.Named("rule_engine"),
	}
}

// Analyze returns one alert per matching rule, at most one per category.
func (e *Engine) Analyze(text string) []domain.SafetyAlert {
	if !e.enabled || text == "" {
		return nil
	}

	var alerts []domain.SafetyAlert
	seen := make(map[string]bool)

	for _, rule := range e.rules {
		if seen[rule.Category] || !rule.Match(text) {
			continue
		}
		seen[rule.Category] = true

		e.logger.Info("crisis rule matched",
			zap.String("rule_id", rule.ID),
			zap.String("category", rule.Category),
		)

		alerts = append(alerts, domain.SafetyAlert{
			RuleID:   rule.ID,
			Category: rule.Category,
			Message:  rule.Message,
			Hotlines: append([]string(nil), rule.Hotlines...),
		})
	}

	return alerts
}

// AnalyzeAll runs Analyze over several texts and merges the alerts.
func (e *Engine) AnalyzeAll(texts ...string) []domain.SafetyAlert {
	var alerts []domain.SafetyAlert
	seen := make(map[string]bool)

	for _, text := range texts {
		for _, a := range e.Analyze(text) {
			if seen[a.Category] {
				continue
			}
			seen[a.Category] = true
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// HasCritical reports whether any alert requires emergency services.
func HasCritical(alerts []domain.SafetyAlert) bool {
	for _, a := range alerts {
		for _, h := range a.Hotlines {
			if h == HotlineEmergency {
				return true
			}
		}
	}
	return false
}
