package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// Stats computes the global overview. "Today" is the current UTC day.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var st domain.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE status = 'active'),
			(SELECT COUNT(*) FROM users WHERE status = 'disabled'),
			(SELECT COUNT(*) FROM bookmarks WHERE deleted_at IS NULL),
			(SELECT COUNT(*) FROM sync_logs),
			(SELECT COUNT(*) FROM sync_logs WHERE created_at >= ?)
	`, millis(dayStart)).Scan(
		&st.TotalUsers, &st.ActiveUsers, &st.DisabledUsers,
		&st.TotalBookmarks, &st.TotalSyncs, &st.TodaySyncs,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}
