package domain

import "time"

// UserStatus is the account state checked on every authenticated request.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserDisabled
}

// User is an account owning a bookmark set.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsAdmin      bool
	Status       UserStatus

	// LastSyncAt is set by the sync endpoint after a successful merge.
	LastSyncAt *time.Time
	CreatedAt  time.Time
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserActive
}

// UserSummary is a user row enriched with its live bookmark count.
type UserSummary struct {
	User
	BookmarkCount int
}

// Stats is the global service overview shown to admins.
type Stats struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	DisabledUsers  int `json:"disabled_users"`
	TotalBookmarks int `json:"total_bookmarks"`
	TotalSyncs     int `json:"total_syncs"`
	TodaySyncs     int `json:"today_syncs"`
}
