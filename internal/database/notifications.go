package database

import (
	"context"
	"fmt"
	"time"

	"wayfare/internal/models"
)

// AddNotification prepends an entry to a scope's feed and trims the feed to
// the cap in the same transaction, keeping bounded-queue semantics.
func (db *DB) AddNotification(ctx context.Context, n *models.Notification, cap int) error {
	if cap <= 0 {
		cap = models.DefaultFeedCap
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.TimeLabel == "" {
		n.TimeLabel = n.CreatedAt.Format("15:04, 02 Jan")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications (id, scope, title, time_label, is_read, created_at)
         VALUES (?, ?, ?, ?, 0, ?)`,
		n.ID, n.Scope, n.Title, n.TimeLabel, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	// Oldest beyond the cap are evicted.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM notifications WHERE scope = ? AND seq NOT IN (
            SELECT seq FROM notifications WHERE scope = ? ORDER BY seq DESC LIMIT ?
         )`, n.Scope, n.Scope, cap)
	if err != nil {
		return fmt.Errorf("failed to trim feed: %w", err)
	}

	return tx.Commit()
}

func (db *DB) NotificationIDExists(ctx context.Context, scope, id string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE scope = ? AND id = ?`, scope, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification id: %w", err)
	}
	return count > 0, nil
}

// ListNotifications returns a scope's feed most-recent-first. An unknown
// scope yields an empty feed, not an error.
func (db *DB) ListNotifications(ctx context.Context, scope string) ([]*models.Notification, error) {
	query := `SELECT id, scope, title, time_label, is_read, created_at
              FROM notifications WHERE scope = ? ORDER BY seq DESC`
	rows, err := db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		n := &models.Notification{}
		err := rows.Scan(&n.ID, &n.Scope, &n.Title, &n.TimeLabel, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkAllNotificationsRead flips every entry in a scope's feed; empty feeds
// are a no-op.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, scope string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE scope = ? AND is_read = 0`, scope)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
