package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository is read-only: notifications are written by the notification
// service, this API only runs the integrity queries the finance audit needs.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DuplicateRow is one dedupe key appearing on more than one visible row.
type DuplicateRow struct {
	DedupeKey string `db:"dedupe_key"`
	Count     int    `db:"count"`
}

// DuplicateVisibleDedupeKeys finds visible notifications sharing a dedupe
// key. Used by the integrity audit only.
func (r *Repository) DuplicateVisibleDedupeKeys(ctx context.Context, limit int) ([]DuplicateRow, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]DuplicateRow, 0)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT dedupe_key, COUNT(*) AS count
		FROM notifications
		WHERE visible AND dedupe_key <> ''
		GROUP BY dedupe_key
		HAVING COUNT(*) > 1
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("duplicate dedupe keys: %w", err)
	}
	return rows, nil
}

// VisibleUnfollows finds policy-violating visible unfollow notifications.
func (r *Repository) VisibleUnfollows(ctx context.Context, limit int) ([]Notification, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]Notification, 0)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT id, recipient_id, category, title, dedupe_key, visible, created_at
		FROM notifications
		WHERE visible AND category = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, CategoryUnfollow, limit)
	if err != nil {
		return nil, fmt.Errorf("visible unfollows: %w", err)
	}
	return rows, nil
}

// UnknownCategories finds notifications whose category is outside the known
// set.
func (r *Repository) UnknownCategories(ctx context.Context, limit int) ([]Notification, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	known := make([]string, len(KnownCategories))
	for i, c := range KnownCategories {
		known[i] = string(c)
	}

	rows := make([]Notification, 0)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT id, recipient_id, category, title, dedupe_key, visible, created_at
		FROM notifications
		WHERE category <> ALL($1)
		ORDER BY created_at DESC
		LIMIT $2
	`, pq.Array(known), limit)
	if err != nil {
		return nil, fmt.Errorf("unknown categories: %w", err)
	}
	return rows, nil
}
