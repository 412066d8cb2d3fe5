package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *ResultCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := New(Config{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return mr, c
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Kind: domain.KindToxicity,
		Toxicity: &domain.ToxicityResult{
			ToxicityScore:  8,
			RedFlags:       []string{"Threats"},
			Patterns:       []domain.ManipulationPattern{domain.PatternThreats},
			UrgencyLevel:   domain.UrgencyCritical,
			Confidence:     0.9,
			Analysis:       "Dangerous",
			Recommendation: "Call the hotline",
		},
		Meta: domain.Meta{Source: domain.SourcePrimary, Provider: "anthropic", PrimaryAttempts: 1},
	}
}

func TestResultCache_SetAndGet(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	key, err := Key(42, domain.KindToxicity, domain.TextPayload{Text: "hello"})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, key, sampleResult()))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.Toxicity.ToxicityScore)
	assert.Equal(t, domain.UrgencyCritical, got.Toxicity.UrgencyLevel)

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResultCache_SkipsDegraded(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	result := sampleResult()
	result.Meta.Degraded = true
	require.NoError(t, c.Set(ctx, "analysis:test", result))

	got, err := c.Get(ctx, "analysis:test")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResultCache_DropsCorruptEntry(t *testing.T) {
	mr, c := setupTestCache(t)
	require.NoError(t, mr.Set("analysis:bad", "{not json"))

	got, err := c.Get(context.Background(), "analysis:bad")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("analysis:bad"))
}

func TestKey(t *testing.T) {
	a, err := Key(1, domain.KindToxicity, domain.TextPayload{Text: "x"})
	require.NoError(t, err)
	b, err := Key(1, domain.KindToxicity, domain.TextPayload{Text: "x"})
	require.NoError(t, err)
	other, err := Key(2, domain.KindToxicity, domain.TextPayload{Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Contains(t, a, "analysis:toxicity_analysis:")

	// Map payloads marshal in sorted key order.
	m1, _ := Key(1, domain.KindPersonalityType, domain.PersonalityPayload{Answers: map[string]string{"a": "1", "b": "2"}})
	m2, _ := Key(1, domain.KindPersonalityType, domain.PersonalityPayload{Answers: map[string]string{"b": "2", "a": "1"}})
	assert.Equal(t, m1, m2)
}

func TestNew_ConnectionFailure(t *testing.T) {
	_, err := New(Config{Addr: "127.0.0.1:1", TTL: time.Minute}, zap.NewNop())
	assert.Error(t, err)
}
