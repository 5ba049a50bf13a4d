package storage

import (
	"context"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/core"
)

func (s *Store) Stats(ctx context.Context) (core.PlatformStats, error) {
	var st core.PlatformStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM badges),
			(SELECT COUNT(*) FROM extra_work WHERE status = 'pending'),
			(SELECT COUNT(*) FROM extra_work WHERE status = 'approved'),
			(SELECT COUNT(*) FROM extra_work WHERE status = 'rejected'),
			(SELECT COALESCE(SUM(hours), 0.0) FROM extra_work WHERE status = 'approved'),
			(SELECT COUNT(*) FROM notifications),
			(SELECT COUNT(*) FROM notifications WHERE is_read = 0)`).Scan(
		&st.Badges,
		&st.ExtraWorkPending,
		&st.ExtraWorkApproved,
		&st.ExtraWorkRejected,
		&st.ApprovedHours,
		&st.Notifications,
		&st.UnreadNotifications,
	)
	if err != nil {
		return st, fmt.Errorf("computing stats: %w", err)
	}
	st.GeneratedAt = s.now()
	return st, nil
}
