package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/core"
)

// ListNotifications returns the inbox, newest first.
func (s *Store) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, is_read, created_at
		FROM notifications
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer closeRows(rows)

	list := []core.Notification{}
	for rows.Next() {
		var n core.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Store) CreateNotification(ctx context.Context, nn core.NewNotification) (core.Notification, error) {
	if err := nn.Validate(); err != nil {
		return core.Notification{}, err
	}
	n := core.Notification{
		ID:        newID(),
		Title:     nn.Title,
		Body:      nn.Body,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (id, title, body, is_read, created_at) VALUES (?, ?, ?, 0, ?)",
		n.ID, n.Title, n.Body, formatTime(n.CreatedAt))
	if err != nil {
		return core.Notification{}, fmt.Errorf("inserting notification: %w", err)
	}
	return n, nil
}

// MarkNotificationRead is idempotent for notifications already read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return expectAffected(res, "notification", id)
}

// MarkAllNotificationsRead returns how many notifications changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE is_read = 0")
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.RowsAffected()
}

func expectAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", core.ErrNotFound, kind, id)
	}
	return nil
}
