package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
)

const userColumns = `id, email, password_hash, is_admin, status, last_sync_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		isAdmin    int
		status     string
		lastSyncAt sql.NullInt64
		createdAt  int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &isAdmin, &status, &lastSyncAt, &createdAt); err != nil {
		return domain.User{}, err
	}
	u.IsAdmin = isAdmin != 0
	u.Status = domain.UserStatus(status)
	u.LastSyncAt = fromNullMillis(lastSyncAt)
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateUser inserts u and returns its id. CreatedAt and Status default to
// now and active when unset.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.Status == "" {
		u.Status = domain.UserActive
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, is_admin, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.Email, u.PasswordHash, boolInt(u.IsAdmin), string(u.Status), millis(u.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// GetUser returns the user with the given id or store.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email or store.ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

// ListUsers returns every user, newest first, with live bookmark counts.
func (s *Store) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.is_admin, u.status, u.last_sync_at, u.created_at,
		       (SELECT COUNT(*) FROM bookmarks b WHERE b.user_id = u.id AND b.deleted_at IS NULL)
		FROM users u
		ORDER BY u.created_at DESC, u.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.UserSummary{}
	for rows.Next() {
		var (
			sum        domain.UserSummary
			isAdmin    int
			status     string
			lastSyncAt sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&sum.ID, &sum.Email, &sum.PasswordHash, &isAdmin, &status, &lastSyncAt, &createdAt,
			&sum.BookmarkCount); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		sum.IsAdmin = isAdmin != 0
		sum.Status = domain.UserStatus(status)
		sum.LastSyncAt = fromNullMillis(lastSyncAt)
		sum.CreatedAt = fromMillis(createdAt)
		users = append(users, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser changes status and/or admin flag. Nil fields are left as is.
func (s *Store) UpdateUser(ctx context.Context, id int64, status *domain.UserStatus, isAdmin *bool) error {
	var st sql.NullString
	if status != nil {
		st = sql.NullString{String: string(*status), Valid: true}
	}
	var adm sql.NullInt64
	if isAdmin != nil {
		adm = sql.NullInt64{Int64: int64(boolInt(*isAdmin)), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET status = COALESCE(?, status), is_admin = COALESCE(?, is_admin)
		WHERE id = ?
	`, st, adm, id)
	if err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	return expectOne(res)
}

// DeleteUser removes a user together with its bookmarks and journal.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

// TouchLastSync records the time of the user's latest successful sync.
func (s *Store) TouchLastSync(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_sync_at = ? WHERE id = ?`, millis(at), id)
	if err != nil {
		return fmt.Errorf("touch last sync: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
