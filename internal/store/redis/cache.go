package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// GetPage decodes the cached extract of url into dst.
// It reports false on a cache miss.
func (s *Store) GetPage(ctx context.Context, url string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, PageKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // Cache miss
		}
		return false, fmt.Errorf("failed to get cached page: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached page: %w", err)
	}
	return true, nil
}

// SetPage stores the extract of url for the configured page TTL
func (s *Store) SetPage(ctx context.Context, url string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := s.client.Set(ctx, PageKey(url), data, s.pageTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache page: %w", err)
	}
	return nil
}

// FlushPages removes all cached page extracts
func (s *Store) FlushPages(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixPage+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
