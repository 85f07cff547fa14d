package notifications

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns the organization's most recent notifications, newest first.
func (r *Repository) List(ctx context.Context, orgID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, kind, title, body, read, created_at
		FROM notifications
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.OrgID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if out == nil {
		out = []Notification{}
	}
	return out, rows.Err()
}

// UnreadCount returns how many notifications the organization has not read.
func (r *Repository) UnreadCount(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE org_id = $1 AND read = FALSE`, orgID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks one notification read. Scoped to the org so a caller
// cannot flip another organization's items.
func (r *Repository) MarkRead(ctx context.Context, orgID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE org_id = $1 AND id = $2`, orgID, id)
	return err
}

// MarkAllRead marks every notification for the organization read.
func (r *Repository) MarkAllRead(ctx context.Context, orgID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE org_id = $1 AND read = FALSE`, orgID)
	return err
}

// DeleteAll clears the organization's feed.
func (r *Repository) DeleteAll(ctx context.Context, orgID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE org_id = $1`, orgID)
	return err
}

// Insert adds a notification to the feed.
func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, org_id, kind, title, body, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.OrgID, n.Kind, n.Title, n.Body, n.Read, n.CreatedAt)
	return err
}
