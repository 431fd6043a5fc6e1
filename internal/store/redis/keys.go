package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const (
	// KeyPrefixLock is the prefix for per-user merge locks
	KeyPrefixLock = "marksync:lock:user:"
	// KeyPrefixPage is the prefix for cached page extracts
	KeyPrefixPage = "marksync:page:"
)

// LockKey returns the Redis key guarding merges of one user
func LockKey(userID int64) string {
	return KeyPrefixLock + strconv.FormatInt(userID, 10)
}

// PageKey returns the Redis key for the cached extract of a url.
// The url is hashed so arbitrary bytes never end up in a key.
func PageKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return KeyPrefixPage + hex.EncodeToString(sum[:])
}
