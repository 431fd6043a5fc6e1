// Package account manages users: registration, login, the admin console
// operations and the per-user sync marker.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/store"
)

const (
	MinPasswordLength = 6

	detailBookmarkLimit = 100
	detailJournalLimit  = 20
)

// UserStore is the persistence the service needs. *sqlite.Store implements it.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (int64, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	UpdateUser(ctx context.Context, id int64, status *domain.UserStatus, isAdmin *bool) error
	DeleteUser(ctx context.Context, id int64) error
	TouchLastSync(ctx context.Context, id int64, at time.Time) error

	CountLiveBookmarks(ctx context.Context, userID int64) (int, error)
	ListLiveBookmarks(ctx context.Context, userID int64, limit int) ([]domain.BookmarkRecord, error)
	CountJournal(ctx context.Context, userID int64) (int, error)
	RecentJournal(ctx context.Context, userID int64, limit int) ([]domain.JournalEntry, error)
}

// Session is what a successful register or login hands back.
type Session struct {
	Token string
	User  domain.User
}

// Status is the sync overview of one user.
type Status struct {
	User          domain.User
	BookmarkCount int
	SyncCount     int
}

// Detail is the admin view of one user.
type Detail struct {
	User          domain.User
	BookmarkCount int
	SyncCount     int
	Bookmarks     []domain.BookmarkRecord
	RecentSyncs   []domain.JournalEntry
}

// Update carries admin changes; nil fields are left untouched.
type Update struct {
	Status  *domain.UserStatus
	IsAdmin *bool
}

type Service struct {
	store  UserStore
	tokens *auth.Issuer
	logger logger.Logger
	now    func() time.Time
}

func New(store UserStore, tokens *auth.Issuer, log logger.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: log, now: time.Now}
}

// normalizeEmail trims and lowercases addr and checks it parses as a bare
// address.
func normalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", ErrInvalidEmail
	}
	return addr, nil
}

// Register creates an active, non-admin account and logs it in.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	u := domain.User{
		Email:        email,
		PasswordHash: hash,
		Status:       domain.UserActive,
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.store.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("register: %w", err)
	}
	u.ID = id

	s.logger.Info("user registered", logger.Int64("user_id", id))
	return s.session(u)
}

// Login checks credentials. Disabled accounts are refused only once the
// password matched.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive() {
		return Session{}, ErrDisabled
	}
	return s.session(u)
}

// AdminLogin is Login restricted to admin accounts.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (Session, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if !u.IsAdmin {
		return Session{}, ErrForbidden
	}
	if !u.IsActive() {
		return Session{}, ErrDisabled
	}
	return s.session(u)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) session(u domain.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID, u.Email, u.IsAdmin)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

// EnsureAdmin creates the bootstrap admin account if no user holds email
// yet. An existing account is promoted, its password is left alone.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return nil
		}
		admin := true
		if err := s.store.UpdateUser(ctx, existing.ID, nil, &admin); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("existing user promoted to admin", logger.Int64("user_id", existing.ID))
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	id, err := s.store.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		Status:       domain.UserActive,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", logger.Int64("user_id", id))
	return nil
}

// Resolve turns a verified token into a Principal, checking the account
// still exists and is active.
func (s *Service) Resolve(ctx context.Context, raw string) (auth.Principal, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return auth.Principal{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return auth.Principal{}, err
	}

	u, err := s.Me(ctx, id)
	if err != nil {
		return auth.Principal{}, err
	}
	if !u.IsActive() {
		return auth.Principal{}, ErrDisabled
	}

	role := auth.RoleUser
	if u.IsAdmin {
		role = auth.RoleAdmin
	}
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: role}, nil
}

// Me returns the account of userID.
func (s *Service) Me(ctx context.Context, userID int64) (domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Lookup returns the account registered under email.
func (s *Service) Lookup(ctx context.Context, email string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// Status returns the sync overview of userID.
func (s *Service) Status(ctx context.Context, userID int64) (Status, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	bookmarks, err := s.store.CountLiveBookmarks(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	syncs, err := s.store.CountJournal(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{User: u, BookmarkCount: bookmarks, SyncCount: syncs}, nil
}

// TouchLastSync stamps the user's last successful sync and returns the
// stamped instant.
func (s *Service) TouchLastSync(ctx context.Context, userID int64) (time.Time, error) {
	at := s.now().UTC().Truncate(time.Millisecond)
	if err := s.store.TouchLastSync(ctx, userID, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("touch last sync: %w", err)
	}
	return at, nil
}

// Bookmarks returns the live bookmarks of userID, newest first.
func (s *Service) Bookmarks(ctx context.Context, userID int64) ([]domain.BookmarkRecord, error) {
	records, err := s.store.ListLiveBookmarks(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return records, nil
}

// List returns every user, newest first.
func (s *Service) List(ctx context.Context) ([]domain.UserSummary, error) {
	return s.store.ListUsers(ctx)
}

// Detail returns the admin view of one user with the latest bookmarks and
// journal entries.
func (s *Service) Detail(ctx context.Context, userID int64) (Detail, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return Detail{}, err
	}
	bookmarks, err := s.store.ListLiveBookmarks(ctx, userID, detailBookmarkLimit)
	if err != nil {
		return Detail{}, err
	}
	syncs, err := s.store.RecentJournal(ctx, userID, detailJournalLimit)
	if err != nil {
		return Detail{}, err
	}
	count, err := s.store.CountLiveBookmarks(ctx, userID)
	if err != nil {
		return Detail{}, err
	}
	syncCount, err := s.store.CountJournal(ctx, userID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		User:          u,
		BookmarkCount: count,
		SyncCount:     syncCount,
		Bookmarks:     bookmarks,
		RecentSyncs:   syncs,
	}, nil
}

// Update applies admin changes to userID.
func (s *Service) Update(ctx context.Context, userID int64, upd Update) error {
	if upd.Status != nil && !upd.Status.Valid() {
		return ErrInvalidStatus
	}
	if err := s.store.UpdateUser(ctx, userID, upd.Status, upd.IsAdmin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", logger.Int64("user_id", userID))
	return nil
}

// Delete removes userID and all its data. An admin cannot delete itself.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, userID int64) error {
	if actor.UserID == userID {
		return ErrSelfDelete
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted",
		logger.Int64("user_id", userID),
		logger.Int64("by", actor.UserID))
	return nil
}
