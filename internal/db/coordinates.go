package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/contract-map/internal/geo"
	"github.com/jackc/pgx/v5"
)

// Store implements geo.CoordinateStore.
var _ geo.CoordinateStore = (*Store)(nil)

func (s *Store) LookupCoordinates(ctx context.Context, key geo.Key) (geo.Coordinates, bool, error) {
	var c geo.Coordinates
	err := s.pool.QueryRow(ctx,
		"SELECT lat, lng FROM city_coordinates WHERE state = $1 AND city_key = $2",
		key.State, key.City,
	).Scan(&c.Lat, &c.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("lookup coordinates %s/%s: %w", key.State, key.City, err)
	}
	return c, true, nil
}

// SaveCoordinates upserts the entry; a later manual correction replaces a
// geocoded value.
func (s *Store) SaveCoordinates(ctx context.Context, entry geo.Entry) error {
	key := entry.Key()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO city_coordinates (state, city_key, city, lat, lng, origin, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (state, city_key) DO UPDATE SET
			city = EXCLUDED.city,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			origin = EXCLUDED.origin,
			resolved_at = EXCLUDED.resolved_at`,
		key.State, key.City, entry.City, entry.Coordinates.Lat, entry.Coordinates.Lng, entry.Origin, entry.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save coordinates %s/%s: %w", key.State, key.City, err)
	}
	return nil
}

func (s *Store) DeleteCoordinates(ctx context.Context, key geo.Key) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM city_coordinates WHERE state = $1 AND city_key = $2", key.State, key.City)
	if err != nil {
		return false, fmt.Errorf("delete coordinates %s/%s: %w", key.State, key.City, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListCoordinates returns persisted entries, optionally limited to one state.
func (s *Store) ListCoordinates(ctx context.Context, state string) ([]geo.Entry, error) {
	query := "SELECT state, city, lat, lng, origin, resolved_at FROM city_coordinates"
	var args []any
	if st := geo.NormalizeState(state); st != "" {
		query += " WHERE state = $1"
		args = append(args, st)
	}
	query += " ORDER BY state, city_key"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list coordinates: %w", err)
	}
	defer rows.Close()

	var entries []geo.Entry
	for rows.Next() {
		var e geo.Entry
		if err := rows.Scan(&e.State, &e.City, &e.Coordinates.Lat, &e.Coordinates.Lng, &e.Origin, &e.ResolvedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
