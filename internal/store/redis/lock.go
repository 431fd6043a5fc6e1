package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose TTL expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock implements reconcile.Locker across processes sharing one Redis.
// It retries SET NX until the lock is free or ctx is done.
func (s *Store) Lock(ctx context.Context, userID int64) (func(), error) {
	key := LockKey(userID)
	token := uuid.NewString()

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release must not depend on the caller's context, which may be
		// cancelled by the time the merge returns.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, s.client, []string{key}, token).Err()
	}, nil
}
