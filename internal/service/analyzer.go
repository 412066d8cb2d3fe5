package service

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

// Analyzer runs toxicity analysis of conversation text.
type Analyzer struct {
	*pipeline
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(deps Deps) *Analyzer {
	return &Analyzer{pipeline: newPipeline(deps, "analyzer")}
}

// AnalyzeText processes text through the analysis pipeline:
// 1. Sanitize input and mask personal data
// 2. Apply crisis rules to the original text
// 3. Serve from cache or invoke the orchestrator
// 4. Persist the result
func (a *Analyzer) AnalyzeText(ctx context.Context, userID int64, text string) (*domain.AnalysisResponse, error) {
	a.logger.Debug("starting analysis", zap.Int64("user_id", userID), zap.Int("text_length", utf8.RuneCountInString(text)))

	clean, err := a.clean(a.sanitizer, "text", text)
	if err != nil {
		return nil, err
	}

	alerts := a.rules.Analyze(text)

	return a.run(ctx, userID, domain.TextPayload{Text: clean}, alerts, runOpts{cacheable: true, persist: true})
}
