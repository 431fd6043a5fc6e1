package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockTTL bounds how long a crashed holder can block a user (30 seconds)
	DefaultLockTTL = 30 * time.Second
	// DefaultPageTTL is the default TTL for cached page extracts (24 hours)
	DefaultPageTTL = 24 * time.Hour
	// lockRetryInterval is the pause between two SET NX attempts
	lockRetryInterval = 50 * time.Millisecond
)

// Store handles Redis operations for merge locks and the page cache
type Store struct {
	client  *redis.Client
	lockTTL time.Duration
	pageTTL time.Duration
}

// NewStore creates a new Redis store. Zero TTLs fall back to the defaults.
func NewStore(client *redis.Client, lockTTL, pageTTL time.Duration) *Store {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if pageTTL <= 0 {
		pageTTL = DefaultPageTTL
	}
	return &Store{
		client:  client,
		lockTTL: lockTTL,
		pageTTL: pageTTL,
	}
}
