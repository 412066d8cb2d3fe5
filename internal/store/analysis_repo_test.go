package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/psychodetective/internal/domain"
)

func newTestRepo(t *testing.T) *AnalysisRepo {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewAnalysisRepo(db)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var tick int
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func toxicityResult(score int, degraded bool) *domain.AnalysisResult {
	source := domain.SourcePrimary
	if degraded {
		source = domain.SourceFallback
	}
	return &domain.AnalysisResult{
		Kind: domain.KindToxicity,
		Toxicity: &domain.ToxicityResult{
			ToxicityScore: score,
			RedFlags:      []string{},
			UrgencyLevel:  domain.UrgencyMedium,
			Analysis:      "analysis",
		},
		Meta: domain.Meta{Source: source, Degraded: degraded},
	}
}

func TestAnalysisRepo_SaveAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alerts := []domain.SafetyAlert{{RuleID: "crisis-violence", Category: "violence", Hotlines: []string{"112"}}}
	rec, err := repo.Save(ctx, 7, domain.TextPayload{Text: "он меня ударил"}, toxicityResult(9, false), alerts)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != 7 || got.Kind != domain.KindToxicity {
		t.Errorf("got user=%d kind=%s", got.UserID, got.Kind)
	}
	if got.Result.Toxicity == nil || got.Result.Toxicity.ToxicityScore != 9 {
		t.Errorf("result not round-tripped: %+v", got.Result)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].RuleID != "crisis-violence" {
		t.Errorf("alerts = %+v", got.Alerts)
	}
	if string(got.Input) != `{"text":"он меня ударил"}` {
		t.Errorf("input = %s", got.Input)
	}
}

func TestAnalysisRepo_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisRepo_ListByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := repo.Save(ctx, 1, domain.TextPayload{Text: "text"}, toxicityResult(i, false), nil); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	personality := &domain.AnalysisResult{
		Kind:        domain.KindPersonalityType,
		Personality: &domain.PersonalityTypeResult{Type: domain.PersonalityEmpath, Traits: []string{}},
	}
	if _, err := repo.Save(ctx, 1, domain.PersonalityPayload{Answers: map[string]string{"q1": "a"}}, personality, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.Save(ctx, 2, domain.TextPayload{Text: "other"}, toxicityResult(1, true), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	all, err := repo.ListByUser(ctx, 1, "", 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	if all[0].Kind != domain.KindPersonalityType {
		t.Errorf("newest first: got %s", all[0].Kind)
	}

	tox, err := repo.ListByUser(ctx, 1, domain.KindToxicity, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(tox) != 2 {
		t.Fatalf("expected 2 records, got %d", len(tox))
	}
	if tox[0].Result.Toxicity.ToxicityScore != 3 || tox[1].Result.Toxicity.ToxicityScore != 2 {
		t.Errorf("unexpected order: %d, %d", tox[0].Result.Toxicity.ToxicityScore, tox[1].Result.Toxicity.ToxicityScore)
	}

	empty, err := repo.ListByUser(ctx, 99, "", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty history, got %d", len(empty))
	}
}

func TestAnalysisRepo_CountByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Save(ctx, 5, domain.TextPayload{Text: "a"}, toxicityResult(1, false), nil)
	repo.Save(ctx, 5, domain.TextPayload{Text: "b"}, toxicityResult(2, true), nil)

	counts, err := repo.CountByUser(ctx, 5)
	if err != nil {
		t.Fatalf("CountByUser: %v", err)
	}
	if counts[domain.KindToxicity] != 2 {
		t.Errorf("toxicity count = %d, want 2", counts[domain.KindToxicity])
	}
}

func TestAnalysisRepo_SaveNilResult(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Save(context.Background(), 1, domain.TextPayload{Text: "x"}, nil, nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}
