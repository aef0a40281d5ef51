package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/david/contract-map/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

const lastRefreshID = "lastRefresh"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Category string
	Limit    int
	Offset   int
}

var contractCols = []string{
	"id", "title", "value", "due_date", "posted_date", "location", "lat", "lng",
	"agency", "category", "contact_email", "description", "source", "url",
}

func contractRow(c models.Contract) []any {
	return []any{
		c.ID, c.Title, c.Value, c.DueDate, c.PostedDate, c.Location, c.Lat, c.Lng,
		c.Agency, c.Category, c.ContactEmail, c.Description, c.Source, c.URL,
	}
}

func scanContract(scan func(dest ...any) error) (models.Contract, error) {
	var c models.Contract
	err := scan(
		&c.ID, &c.Title, &c.Value, &c.DueDate, &c.PostedDate, &c.Location, &c.Lat, &c.Lng,
		&c.Agency, &c.Category, &c.ContactEmail, &c.Description, &c.Source, &c.URL,
	)
	return c, err
}

// ReplaceContracts swaps the published snapshot in one transaction: the old
// rows are deleted, the new ones copied in and the refresh metadata upserted.
// Readers see either the previous snapshot or the new one.
func (s *Store) ReplaceContracts(ctx context.Context, contracts []models.Contract, meta models.RefreshMetadata) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM contracts"); err != nil {
		return fmt.Errorf("clear contracts: %w", err)
	}

	if len(contracts) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"contracts"}, contractCols,
			pgx.CopyFromSlice(len(contracts), func(i int) ([]any, error) {
				return contractRow(contracts[i]), nil
			}))
		if err != nil {
			return fmt.Errorf("copy contracts: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_metadata (id, refreshed_at, contract_count, processing_time_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			refreshed_at = EXCLUDED.refreshed_at,
			contract_count = EXCLUDED.contract_count,
			processing_time_ms = EXCLUDED.processing_time_ms`,
		lastRefreshID, meta.Timestamp, meta.ContractCount, meta.ProcessingTimeMs)
	if err != nil {
		return fmt.Errorf("write refresh metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ListContracts returns the published snapshot ordered by id.
func (s *Store) ListContracts(ctx context.Context, params ListParams) ([]models.Contract, error) {
	query, args := buildListQuery(params)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	contracts := []models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func buildListQuery(params ListParams) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(contractCols, ", "))
	sb.WriteString(" FROM contracts")

	var args []any
	if params.Category != "" {
		args = append(args, params.Category)
		fmt.Fprintf(&sb, " WHERE category = $%d", len(args))
	}
	sb.WriteString(" ORDER BY id")
	if params.Limit > 0 {
		args = append(args, params.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

// LastRefresh returns the metadata of the most recent published snapshot,
// or ErrNotFound before the first refresh.
func (s *Store) LastRefresh(ctx context.Context) (models.RefreshMetadata, error) {
	var meta models.RefreshMetadata
	err := s.pool.QueryRow(ctx,
		"SELECT refreshed_at, contract_count, processing_time_ms FROM refresh_metadata WHERE id = $1",
		lastRefreshID,
	).Scan(&meta.Timestamp, &meta.ContractCount, &meta.ProcessingTimeMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return meta, ErrNotFound
	}
	if err != nil {
		return meta, fmt.Errorf("read refresh metadata: %w", err)
	}
	return meta, nil
}

// SnapshotStats summarizes how complete the published snapshot is.
type SnapshotStats struct {
	Total       int
	WithValue   int
	WithDueDate int
	WithContact int
	Unlocated   int
	ByCategory  map[string]int
}

func (s *Store) SnapshotStats(ctx context.Context) (SnapshotStats, error) {
	stats := SnapshotStats{ByCategory: map[string]int{}}
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE value <> 'N/A'),
			count(*) FILTER (WHERE due_date <> 'N/A'),
			count(*) FILTER (WHERE contact_email <> 'N/A'),
			count(*) FILTER (WHERE location = 'Unknown')
		FROM contracts
	`).Scan(&stats.Total, &stats.WithValue, &stats.WithDueDate, &stats.WithContact, &stats.Unlocated)
	if err != nil {
		return stats, fmt.Errorf("snapshot stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, "SELECT category, count(*) FROM contracts GROUP BY category")
	if err != nil {
		return stats, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return stats, err
		}
		stats.ByCategory[category] = n
	}
	return stats, rows.Err()
}
