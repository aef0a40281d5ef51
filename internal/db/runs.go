package db

import (
	"context"
	"fmt"

	"github.com/david/contract-map/internal/models"
)

func (s *Store) StartRun(ctx context.Context, run models.RefreshRun) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO refresh_runs (run_id, trigger, status, started_at) VALUES ($1, $2, $3, $4)",
		run.ID, run.Trigger, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert refresh run: %w", err)
	}
	return nil
}

// FinishRun records the outcome. A run that failed before StartRun was
// recorded is inserted here instead.
func (s *Store) FinishRun(ctx context.Context, run models.RefreshRun) error {
	var errText *string
	if run.Error != "" {
		errText = &run.Error
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_runs (
			run_id, trigger, status, regions, fetched, published,
			geocode_calls, geocode_fallbacks, error, started_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			regions = EXCLUDED.regions,
			fetched = EXCLUDED.fetched,
			published = EXCLUDED.published,
			geocode_calls = EXCLUDED.geocode_calls,
			geocode_fallbacks = EXCLUDED.geocode_fallbacks,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms`,
		run.ID, run.Trigger, run.Status, run.Regions, run.Fetched, run.Published,
		run.GeocodeCalls, run.GeocodeFallbacks, errText, run.StartedAt, run.CompletedAt, run.DurationMs)
	if err != nil {
		return fmt.Errorf("update refresh run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, trigger, status, regions, fetched, published,
			geocode_calls, geocode_fallbacks, COALESCE(error, ''), started_at, completed_at, duration_ms
		FROM refresh_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RefreshRun{}
	for rows.Next() {
		var r models.RefreshRun
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Status, &r.Regions, &r.Fetched, &r.Published,
			&r.GeocodeCalls, &r.GeocodeFallbacks, &r.Error, &r.StartedAt, &r.CompletedAt, &r.DurationMs); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
