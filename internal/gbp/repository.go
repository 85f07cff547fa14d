package gbp

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists confirmed location selections per organization.
type Repository struct {
	db DB
}

// NewRepository creates a selection repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// List returns the organization's persisted selections ordered by key.
func (r *Repository) List(ctx context.Context, orgID string) ([]Selection, error) {
	rows, err := r.db.Query(ctx, `
		SELECT account_id, location_id, display_name
		FROM gbp_selections
		WHERE org_id = $1
		ORDER BY account_id, location_id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("gbp: list selections: %w", err)
	}
	defer rows.Close()

	var out []Selection
	for rows.Next() {
		var s Selection
		if err := rows.Scan(&s.AccountID, &s.LocationID, &s.DisplayName); err != nil {
			return nil, fmt.Errorf("gbp: scan selection: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gbp: iterate selections: %w", err)
	}
	return out, nil
}

// Replace atomically makes the given selections the organization's complete
// set. Idempotent: replaying the same set yields the same rows, keyed by
// (org_id, account_id, location_id).
func (r *Repository) Replace(ctx context.Context, orgID string, selections []Selection) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("gbp: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM gbp_selections WHERE org_id = $1`, orgID); err != nil {
		return fmt.Errorf("gbp: clear selections: %w", err)
	}

	for _, s := range selections {
		_, err := tx.Exec(ctx, `
			INSERT INTO gbp_selections (org_id, account_id, location_id, display_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT (org_id, account_id, location_id) DO UPDATE
			SET display_name = EXCLUDED.display_name,
				updated_at = NOW()
		`, orgID, s.AccountID, s.LocationID, s.DisplayName)
		if err != nil {
			return fmt.Errorf("gbp: upsert selection %s: %w", s.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("gbp: commit: %w", err)
	}
	return nil
}
