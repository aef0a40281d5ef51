package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/david/contract-map/internal/models"
	"github.com/jackc/pgx/v5"
)

// PreferredStates returns the distinct, upper-cased region codes stored
// under preferences.states across every user.
func (s *Store) PreferredStates(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT UPPER(TRIM(st))
		FROM user_preferences,
			jsonb_array_elements_text(
				CASE WHEN jsonb_typeof(preferences->'states') = 'array'
					THEN preferences->'states' ELSE '[]'::jsonb END
			) AS st
		WHERE TRIM(st) <> ''
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query preferred states: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	var prefs models.Preferences
	var raw []byte
	err := s.pool.QueryRow(ctx, "SELECT preferences FROM user_preferences WHERE user_id = $1", userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return prefs, ErrNotFound
	}
	if err != nil {
		return prefs, fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return prefs, fmt.Errorf("decode preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

func (s *Store) SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, preferences, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = NOW()`,
		userID, raw)
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
