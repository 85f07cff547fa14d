package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("accounts: not found")

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes account profiles.
type Repository struct {
	db DB
}

// NewRepository creates an account repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `
	id, email, first_name, last_name, business_phone,
	COALESCE(organization_id::text, '') AS organization_id,
	google_connected, COALESCE(billing_status, '') AS billing_status,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.BusinessPhone,
		&a.OrganizationID, &a.GoogleConnected, &a.BillingStatus,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: scan: %w", err)
	}
	return &a, nil
}

// Get retrieves an account by id.
func (r *Repository) Get(ctx context.Context, accountID string) (*Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// GetByEmail retrieves an account by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	return scanAccount(row)
}

// Upsert creates an account record on first login, keyed by id.
func (r *Repository) Upsert(ctx context.Context, a *Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, email, first_name, last_name, business_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			updated_at = NOW()
	`, a.ID, a.Email, a.FirstName, a.LastName, a.BusinessPhone)
	if err != nil {
		return fmt.Errorf("accounts: upsert: %w", err)
	}
	return nil
}

// UpdateIdentity persists the identity-capture fields from onboarding step 1.
func (r *Repository) UpdateIdentity(ctx context.Context, accountID, firstName, lastName, businessPhone string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET first_name = $2, last_name = $3, business_phone = $4, updated_at = NOW()
		WHERE id = $1
	`, accountID, firstName, lastName, businessPhone)
	if err != nil {
		return fmt.Errorf("accounts: update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOrganization links the account to its newly created organization.
func (r *Repository) SetOrganization(ctx context.Context, accountID, orgID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET organization_id = $2, updated_at = NOW() WHERE id = $1
	`, accountID, orgID)
	if err != nil {
		return fmt.Errorf("accounts: set organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGoogleConnected flips the Google connection flag after an OAuth
// handshake completes.
func (r *Repository) SetGoogleConnected(ctx context.Context, accountID string, connected bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET google_connected = $2, updated_at = NOW() WHERE id = $1
	`, accountID, connected)
	if err != nil {
		return fmt.Errorf("accounts: set google connected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBillingStatus records the billing state observed via the checkout
// provider's webhook.
func (r *Repository) SetBillingStatus(ctx context.Context, accountID, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET billing_status = $2, updated_at = NOW() WHERE id = $1
	`, accountID, status)
	if err != nil {
		return fmt.Errorf("accounts: set billing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
