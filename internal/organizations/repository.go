package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no organization matches the lookup.
var ErrNotFound = errors.New("organizations: not found")

// ErrDomainTaken is returned when another organization already claims the
// domain. Registration must never merge into the existing record.
var ErrDomainTaken = errors.New("organizations: domain already registered")

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes organizations.
type Repository struct {
	db DB
}

// NewRepository creates an organization repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new organization and returns its server-assigned id.
// A domain already claimed by another organization yields ErrDomainTaken;
// the existing record is never touched.
func (r *Repository) Create(ctx context.Context, id string, p CreateParams) (string, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO organizations (id, practice_name, street, city, state, zip, domain_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`, id, p.PracticeName, p.Street, p.City, p.State, p.Zip, p.DomainName)

	var insertedID string
	if err := row.Scan(&insertedID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("%w: %s", ErrDomainTaken, p.DomainName)
		}
		return "", fmt.Errorf("organizations: create: %w", err)
	}
	return insertedID, nil
}

// Get retrieves an organization by id.
func (r *Repository) Get(ctx context.Context, orgID string) (*Organization, error) {
	var o Organization
	err := r.db.QueryRow(ctx, `
		SELECT id, practice_name, street, city, state, zip, domain_name, created_at, updated_at
		FROM organizations WHERE id = $1
	`, orgID).Scan(&o.ID, &o.PracticeName, &o.Street, &o.City, &o.State, &o.Zip, &o.DomainName, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organizations: get: %w", err)
	}
	return &o, nil
}

// DomainInUse reports whether any organization already claims the sanitized
// domain. Satisfies the domain checker's conflict lookup.
func (r *Repository) DomainInUse(ctx context.Context, domain string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organizations WHERE domain_name = $1)`, domain,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("organizations: domain lookup: %w", err)
	}
	return exists, nil
}
