package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

func appendJournal(ctx context.Context, tx *sql.Tx, userID int64, e domain.JournalEntry) error {
	action := e.Action
	if action == "" {
		action = domain.SyncMerge
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_logs (user_id, action, added, updated, deleted, conflicts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, string(action), e.Added, e.Updated, e.Deleted, e.Conflicts, millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// RecentJournal returns the newest journal entries of a user, at most limit
// rows (0 = all).
func (s *Store) RecentJournal(ctx context.Context, userID int64, limit int) ([]domain.JournalEntry, error) {
	query := `
		SELECT id, user_id, action, added, updated, deleted, conflicts, created_at
		FROM sync_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []domain.JournalEntry{}
	for rows.Next() {
		var (
			e         domain.JournalEntry
			action    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.Added, &e.Updated, &e.Deleted, &e.Conflicts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Action = domain.SyncAction(action)
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// CountJournal returns how many merges a user has completed.
func (s *Store) CountJournal(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_logs WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}
