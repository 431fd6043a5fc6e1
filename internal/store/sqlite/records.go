package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
)

const bookmarkColumns = `id, user_id, client_id, url, title, folder_path, created_at, updated_at, deleted_at`

// LoadLiveRecords implements reconcile.RecordStore.
func (s *Store) LoadLiveRecords(ctx context.Context, userID int64) ([]domain.BookmarkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query live bookmarks: %w", err)
	}
	return scanBookmarks(rows)
}

// ApplyMerge implements reconcile.RecordStore in one transaction. Updates
// run before inserts so a url freed by a deletion can be reused in the same
// batch without tripping the live-url unique index.
func (s *Store) ApplyMerge(ctx context.Context, userID int64, batch reconcile.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(batch.Updates) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE bookmarks
			SET client_id = ?, title = ?, folder_path = ?, updated_at = ?, deleted_at = ?
			WHERE id = ? AND user_id = ? AND deleted_at IS NULL
		`)
		if err != nil {
			return fmt.Errorf("prepare update: %w", err)
		}
		defer stmt.Close()

		for _, rec := range batch.Updates {
			res, err := stmt.ExecContext(ctx,
				rec.ClientID, rec.Title, rec.FolderPath,
				millis(rec.UpdatedAt), nullMillis(rec.DeletedAt),
				rec.ID, userID)
			if err != nil {
				return fmt.Errorf("update bookmark %d: %w", rec.ID, mapErr(err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update bookmark %d: %w", rec.ID, err)
			}
			if n != 1 {
				return fmt.Errorf("update bookmark %d: no live row for user %d", rec.ID, userID)
			}
		}
	}

	if len(batch.Inserts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bookmarks (user_id, client_id, url, title, folder_path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range batch.Inserts {
			if _, err := stmt.ExecContext(ctx,
				userID, rec.ClientID, rec.URL, rec.Title, rec.FolderPath,
				millis(rec.CreatedAt), millis(rec.UpdatedAt)); err != nil {
				return fmt.Errorf("insert bookmark %q: %w", rec.URL, mapErr(err))
			}
		}
	}

	if err := appendJournal(ctx, tx, userID, batch.Journal); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// ListLiveBookmarks returns the newest live bookmarks of a user, at most
// limit rows (0 = all).
func (s *Store) ListLiveBookmarks(ctx context.Context, userID int64, limit int) ([]domain.BookmarkRecord, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	return scanBookmarks(rows)
}

// CountLiveBookmarks returns the number of live bookmarks of a user.
func (s *Store) CountLiveBookmarks(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE user_id = ? AND deleted_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return n, nil
}

func scanBookmarks(rows *sql.Rows) ([]domain.BookmarkRecord, error) {
	defer rows.Close()

	records := []domain.BookmarkRecord{}
	for rows.Next() {
		var (
			rec                  domain.BookmarkRecord
			createdAt, updatedAt int64
			deletedAt            sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ClientID, &rec.URL, &rec.Title, &rec.FolderPath,
			&createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		rec.DeletedAt = fromNullMillis(deletedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return records, nil
}
