package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ncruces/go-sqlite3"

	"github.com/rubiojr/topicsync/pkg/core"
)

func (s *Store) ListBadges(ctx context.Context) ([]core.Badge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, icon, created_at
		FROM badges
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying badges: %w", err)
	}
	defer closeRows(rows)

	badges := []core.Badge{}
	for rows.Next() {
		var b core.Badge
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning badge: %w", err)
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (s *Store) CreateBadge(ctx context.Context, nb core.NewBadge) (core.Badge, error) {
	if err := nb.Validate(); err != nil {
		return core.Badge{}, err
	}
	b := core.Badge{
		ID:          newID(),
		Name:        strings.TrimSpace(nb.Name),
		Description: nb.Description,
		Icon:        nb.Icon,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO badges (id, name, description, icon, created_at) VALUES (?, ?, ?, ?, ?)",
		b.ID, b.Name, b.Description, b.Icon, formatTime(b.CreatedAt))
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return core.Badge{}, fmt.Errorf("%w: badge %q already exists", core.ErrConflict, b.Name)
	}
	if err != nil {
		return core.Badge{}, fmt.Errorf("inserting badge: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBadge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM badges WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting badge: %w", err)
	}
	return expectAffected(res, "badge", id)
}
