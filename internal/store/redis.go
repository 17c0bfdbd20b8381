package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations: the rate-limiter backend and the
// cache of validated bearer tokens. All relay state lives in the DataStore;
// Redis only accelerates the request path.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate-limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// tokenCacheKey returns the key caching a validated token fingerprint.
func tokenCacheKey(fingerprint string) string {
	return fmt.Sprintf("authcache:%s", fingerprint)
}

// CachedCallerID returns the caller id previously validated for this token
// fingerprint, or "" on a miss. Misses are not errors.
func (s *RedisStore) CachedCallerID(ctx context.Context, fingerprint string) string {
	id, err := s.client.Get(ctx, tokenCacheKey(fingerprint)).Result()
	if err != nil {
		return ""
	}
	return id
}

// CacheCallerID records a validated token fingerprint with a TTL so repeated
// polls skip the bcrypt comparison.
func (s *RedisStore) CacheCallerID(ctx context.Context, fingerprint, callerID string, ttl time.Duration) {
	s.client.Set(ctx, tokenCacheKey(fingerprint), callerID, ttl)
}
