package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rubiojr/topicsync/pkg/core"
)

func (s *Store) ListExtraWork(ctx context.Context) ([]core.ExtraWork, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_name, hours, description, status, created_at, reviewed_at
		FROM extra_work
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying extra work: %w", err)
	}
	defer closeRows(rows)

	entries := []core.ExtraWork{}
	for rows.Next() {
		w, err := scanExtraWork(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, w)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExtraWork(row scanner) (core.ExtraWork, error) {
	var w core.ExtraWork
	var status, createdAt string
	var reviewedAt sql.NullString
	if err := row.Scan(&w.ID, &w.User, &w.Hours, &w.Description, &status, &createdAt, &reviewedAt); err != nil {
		return w, fmt.Errorf("scanning extra work: %w", err)
	}
	w.Status = core.WorkStatus(status)

	var err error
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return w, err
	}
	if reviewedAt.Valid {
		t, err := parseTime(reviewedAt.String)
		if err != nil {
			return w, err
		}
		w.ReviewedAt = &t
	}
	return w, nil
}

func (s *Store) CreateExtraWork(ctx context.Context, nw core.NewExtraWork) (core.ExtraWork, error) {
	if err := nw.Validate(); err != nil {
		return core.ExtraWork{}, err
	}
	w := core.ExtraWork{
		ID:          newID(),
		User:        strings.TrimSpace(nw.User),
		Hours:       nw.Hours,
		Description: nw.Description,
		Status:      core.WorkPending,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extra_work (id, user_name, hours, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.User, w.Hours, w.Description, string(w.Status), formatTime(w.CreatedAt))
	if err != nil {
		return core.ExtraWork{}, fmt.Errorf("inserting extra work: %w", err)
	}
	return w, nil
}

// ReviewExtraWork moves a pending entry to approved or rejected. Entries
// already reviewed yield core.ErrConflict.
func (s *Store) ReviewExtraWork(ctx context.Context, id string, approve bool) (core.ExtraWork, error) {
	status := core.WorkRejected
	if approve {
		status = core.WorkApproved
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ExtraWork{}, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback review transaction: %v", err)
			}
		}
	}()

	w, err := scanExtraWork(tx.QueryRowContext(ctx, `
		SELECT id, user_name, hours, description, status, created_at, reviewed_at
		FROM extra_work WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExtraWork{}, fmt.Errorf("%w: extra work %s", core.ErrNotFound, id)
		}
		return core.ExtraWork{}, err
	}
	if w.Status != core.WorkPending {
		return core.ExtraWork{}, fmt.Errorf("%w: extra work %s is already %s", core.ErrConflict, id, w.Status)
	}

	reviewed := s.now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE extra_work SET status = ?, reviewed_at = ? WHERE id = ?",
		string(status), formatTime(reviewed), id); err != nil {
		return core.ExtraWork{}, fmt.Errorf("updating extra work: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.ExtraWork{}, fmt.Errorf("committing review: %w", err)
	}
	committed = true

	w.Status = status
	w.ReviewedAt = &reviewed
	return w, nil
}
