package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"riskwatch/internal/evalapi"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertWindowSQL = `INSERT INTO evaluation_windows (
        merchant_key,
        window_end_ts,
        window_end_iso,
        interval_minutes,
        scores,
        confidence,
        counts
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (merchant_key, interval_minutes, window_end_ts) DO UPDATE
    SET
        window_end_iso = EXCLUDED.window_end_iso,
        scores         = EXCLUDED.scores,
        confidence     = EXCLUDED.confidence,
        counts         = EXCLUDED.counts;`

	listWindowsSQL = `SELECT
        merchant_key,
        window_end_ts,
        window_end_iso,
        interval_minutes,
        scores,
        confidence,
        counts,
        created_at
    FROM evaluation_windows
    WHERE merchant_key = $1
      AND interval_minutes = $2
      AND window_end_ts >= $3
      AND window_end_ts <= $4
    ORDER BY window_end_ts
    LIMIT $5;`

	latestWindowSQL = `SELECT
        merchant_key,
        window_end_ts,
        window_end_iso,
        interval_minutes,
        scores,
        confidence,
        counts,
        created_at
    FROM evaluation_windows
    WHERE merchant_key = $1
      AND interval_minutes = $2
    ORDER BY window_end_ts DESC
    LIMIT 1;`

	countWindowsSQL = `SELECT COUNT(*) FROM evaluation_windows
    WHERE merchant_key = $1 AND interval_minutes = $2;`
)

// WindowStore defines persistence operations for evaluation windows.
type WindowStore interface {
	UpsertWindow(ctx context.Context, merchant string, w evalapi.EvaluationWindow) error
	ListWindows(ctx context.Context, merchant string, intervalMinutes int, since, until int64, limit int) ([]evalapi.EvaluationWindow, error)
	LatestWindow(ctx context.Context, merchant string, intervalMinutes int) (*evalapi.EvaluationWindow, error)
	CountWindows(ctx context.Context, merchant string, intervalMinutes int) (int64, error)
}

// Store aggregates access to persisted evaluation windows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertWindow persists or replaces one evaluation window.
func (s *Store) UpsertWindow(ctx context.Context, merchant string, w evalapi.EvaluationWindow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	scores, err := json.Marshal(w.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	counts, err := json.Marshal(w.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}

	var confidence interface{}
	if w.Confidence != nil {
		confidence = *w.Confidence
	}

	_, execErr := pool.Exec(ctx, upsertWindowSQL,
		merchant,
		w.WindowEndTS,
		w.WindowEndISO,
		w.IntervalMinutes,
		scores,
		confidence,
		counts,
	)
	if execErr != nil {
		return fmt.Errorf("upsert evaluation window: %w", execErr)
	}
	return nil
}

// ListWindows lists windows in [since, until] ascending by end timestamp.
func (s *Store) ListWindows(ctx context.Context, merchant string, intervalMinutes int, since, until int64, limit int) ([]evalapi.EvaluationWindow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listWindowsSQL, merchant, intervalMinutes, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluation windows: %w", err)
	}
	defer rows.Close()

	var out []evalapi.EvaluationWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w.Window)
	}
	return out, rows.Err()
}

// LatestWindow returns the newest window for a merchant, nil when none exist.
func (s *Store) LatestWindow(ctx context.Context, merchant string, intervalMinutes int) (*evalapi.EvaluationWindow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, latestWindowSQL, merchant, intervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("latest evaluation window: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	w, err := scanWindow(rows)
	if err != nil {
		return nil, err
	}
	return &w.Window, rows.Err()
}

// CountWindows reports how many windows exist for a merchant/interval.
func (s *Store) CountWindows(ctx context.Context, merchant string, intervalMinutes int) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := pool.QueryRow(ctx, countWindowsSQL, merchant, intervalMinutes).Scan(&count); err != nil {
		return 0, fmt.Errorf("count evaluation windows: %w", err)
	}
	return count, nil
}

func scanWindow(rows pgx.Rows) (StoredWindow, error) {
	var (
		stored     StoredWindow
		scoresRaw  []byte
		countsRaw  []byte
		confidence *float64
		createdAt  time.Time
	)

	if err := rows.Scan(
		&stored.MerchantKey,
		&stored.Window.WindowEndTS,
		&stored.Window.WindowEndISO,
		&stored.Window.IntervalMinutes,
		&scoresRaw,
		&confidence,
		&countsRaw,
		&createdAt,
	); err != nil {
		return stored, fmt.Errorf("scan evaluation window: %w", err)
	}

	if len(scoresRaw) > 0 {
		if err := json.Unmarshal(scoresRaw, &stored.Window.Scores); err != nil {
			return stored, fmt.Errorf("decode scores: %w", err)
		}
	}
	if len(countsRaw) > 0 {
		if err := json.Unmarshal(countsRaw, &stored.Window.Counts); err != nil {
			return stored, fmt.Errorf("decode counts: %w", err)
		}
	}
	stored.Window.Confidence = confidence
	stored.CreatedAt = createdAt
	return stored, nil
}

var _ WindowStore = (*Store)(nil)
