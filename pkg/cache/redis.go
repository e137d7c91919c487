package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Store is a shared key-value service holding serialized cache payloads.
// Any Redis-wire-compatible service satisfies it through RedisStore.
type Store interface {
	// Get returns the payload stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key; the store expires it after ttl.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix namespaces every key as "<prefix>:<key>".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithQueryTimeout bounds each Redis round trip. Zero leaves timeouts to the
// client's own settings.
func WithQueryTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.queryTimeout = d }
}

// RedisStore stores cache payloads in Redis with native key expiry.
type RedisStore struct {
	redis        redis.UniversalClient
	prefix       string
	queryTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. The server must answer PING,
// otherwise ErrStoreUnavailable is returned and no store is created.
// The caller owns the client lifecycle.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.Wrap(ErrStoreUnavailable, "redis client cannot be nil")
	}
	s := &RedisStore{redis: client}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves the payload stored under key.
// Returns ErrCacheMiss if the key doesn't exist or has expired.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}

// Set stores data under key with the given TTL.
// The entry will be automatically removed by Redis when it expires.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.prefixKey(key), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		CacheErrors.WithLabelValues("ping").Inc()
		return errors.Mark(errors.Wrap(err, "redis ping"), ErrStoreUnavailable)
	}
	return nil
}

func (s *RedisStore) prefixKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.queryTimeout)
}
