package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
	"github.com/psychodetective/internal/store"
)

// MaxHistoryLimit caps a single history page.
const MaxHistoryLimit = 100

// HistoryService lists a user's stored analyses.
type HistoryService struct {
	store  Repository
	logger *zap.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(repo Repository, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: repo, logger: logger.Named("history")}
}

// List returns the newest analyses of a user, optionally filtered by kind.
func (h *HistoryService) List(ctx context.Context, userID int64, kind domain.Kind, limit int) ([]store.AnalysisRecord, error) {
	if kind != "" && !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidOperation, kind)
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if h.store == nil {
		return []store.AnalysisRecord{}, nil
	}

	records, err := h.store.ListByUser(ctx, userID, kind, limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return records, nil
}

// Get returns one stored analysis owned by userID. Records of other users are
// reported as not found.
func (h *HistoryService) Get(ctx context.Context, userID int64, id string) (*store.AnalysisRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: analysis id is required", domain.ErrInvalidOperation)
	}
	if h.store == nil {
		return nil, domain.ErrNotFound
	}

	rec, err := h.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("failed to load analysis", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// Stats summarizes how many analyses of each kind a user has stored.
type Stats struct {
	UserID int64               `json:"user_id"`
	Total  int                 `json:"total"`
	ByKind map[domain.Kind]int `json:"by_kind"`
}

// Stats returns per-kind analysis counts for a user. Every kind is present.
func (h *HistoryService) Stats(ctx context.Context, userID int64) (*Stats, error) {
	stats := &Stats{UserID: userID, ByKind: make(map[domain.Kind]int, len(domain.Kinds))}
	for _, kind := range domain.Kinds {
		stats.ByKind[kind] = 0
	}
	if h.store == nil {
		return stats, nil
	}

	counts, err := h.store.CountByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to count analyses", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	for kind, n := range counts {
		stats.ByKind[kind] = n
		stats.Total += n
	}
	return stats, nil
}
