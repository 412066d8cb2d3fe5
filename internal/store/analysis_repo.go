package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psychodetective/internal/domain"
)

// DefaultHistoryLimit caps history listings when the caller passes no limit.
const DefaultHistoryLimit = 20

// AnalysisRecord is one persisted analysis.
type AnalysisRecord struct {
	ID        string                 `json:"id"`
	UserID    int64                  `json:"user_id"`
	Kind      domain.Kind            `json:"kind"`
	Input     json.RawMessage        `json:"input"`
	Result    *domain.AnalysisResult `json:"result"`
	Alerts    []domain.SafetyAlert   `json:"alerts,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// AnalysisRepo handles persistence for AnalysisRecord entries.
type AnalysisRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewAnalysisRepo creates a repository over db.
func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db, now: time.Now}
}

// Save inserts an analysis and returns the stored record.
func (r *AnalysisRepo) Save(ctx context.Context, userID int64, payload domain.Payload, result *domain.AnalysisResult, alerts []domain.SafetyAlert) (*AnalysisRecord, error) {
	if result == nil {
		return nil, fmt.Errorf("save analysis: nil result")
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	output, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if alerts == nil {
		alerts = []domain.SafetyAlert{}
	}
	alertsJSON, err := json.Marshal(alerts)
	if err != nil {
		return nil, fmt.Errorf("marshal alerts: %w", err)
	}

	rec := &AnalysisRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      result.Kind,
		Input:     input,
		Result:    result,
		Alerts:    alerts,
		CreatedAt: r.now().UTC(),
	}

	const q = `INSERT INTO analyses (id, user_id, kind, input_json, result_json, source, provider, degraded, alerts_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		string(input),
		string(output),
		string(result.Meta.Source),
		result.Meta.Provider,
		boolToInt(result.Meta.Degraded),
		string(alertsJSON),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	return rec, nil
}

// Get returns one analysis by ID.
func (r *AnalysisRepo) Get(ctx context.Context, id string) (*AnalysisRecord, error) {
	const q = `SELECT id, user_id, kind, input_json, result_json, alerts_json, created_at
FROM analyses WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}

// ListByUser returns a user's analyses, newest first. An empty kind lists all kinds.
func (r *AnalysisRepo) ListByUser(ctx context.Context, userID int64, kind domain.Kind, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := `SELECT id, user_id, kind, input_json, result_json, alerts_json, created_at
FROM analyses WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	records := []AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountByUser returns the number of stored analyses per kind for a user.
func (r *AnalysisRepo) CountByUser(ctx context.Context, userID int64) (map[domain.Kind]int, error) {
	const q = `SELECT kind, COUNT(*) FROM analyses WHERE user_id = ? GROUP BY kind`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.Kind(kind)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*AnalysisRecord, error) {
	var (
		rec                   AnalysisRecord
		kind                  string
		input, output, alerts string
		createdAt             int64
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &kind, &input, &output, &alerts, &createdAt); err != nil {
		return nil, err
	}

	rec.Kind = domain.Kind(kind)
	rec.Input = json.RawMessage(input)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", rec.ID, err)
	}
	rec.Result = &result

	if err := json.Unmarshal([]byte(alerts), &rec.Alerts); err != nil {
		return nil, fmt.Errorf("decode alerts %s: %w", rec.ID, err)
	}
	if len(rec.Alerts) == 0 {
		rec.Alerts = nil
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
