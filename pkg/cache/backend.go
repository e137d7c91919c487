package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

// backend routes a handler's results to one of the two stores. get also
// reports the time left on a hit when the store tracks it, otherwise 0.
type backend[T any] interface {
	get(ctx context.Context, key string) (T, time.Duration, bool, error)
	set(ctx context.Context, key string, value T, ttl time.Duration) error
	name() string
}

// memoryBackend keeps native values in a MemoryStore.
type memoryBackend[T any] struct {
	store *MemoryStore
}

func (b *memoryBackend[T]) get(_ context.Context, key string) (T, time.Duration, bool, error) {
	var zero T
	entry, ok := b.store.Entry(key)
	if !ok {
		return zero, 0, false, nil
	}
	typed, ok := entry.Value.(T)
	if !ok {
		// Another handler wrote this key with a different result type.
		return zero, 0, false, errors.Mark(errors.Newf("memory entry %q holds %T, want %T", key, entry.Value, zero), ErrDecode)
	}
	return typed, entry.ttlAt(b.store.now()), true, nil
}

func (b *memoryBackend[T]) set(_ context.Context, key string, value T, ttl time.Duration) error {
	return b.store.Set(key, value, ttl)
}

func (b *memoryBackend[T]) name() string { return backendMemory }

// storeBackend serializes values through a Codec into an external Store.
type storeBackend[T any] struct {
	store Store
	codec *Codec
	shape Shape
}

func (b *storeBackend[T]) get(ctx context.Context, key string) (T, time.Duration, bool, error) {
	var zero T
	data, err := b.store.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return zero, 0, false, nil
	}
	if err != nil {
		return zero, 0, false, err
	}

	value, err := decodeAs[T](b.codec, data, b.shape)
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return zero, 0, false, errors.Wrapf(err, "key %q", key)
	}
	return value, 0, true, nil
}

func (b *storeBackend[T]) set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, _, err := b.codec.Encode(value)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}
	if err := b.store.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	StoredBytes.WithLabelValues(backendRedis).Add(float64(len(data)))
	return nil
}

func (b *storeBackend[T]) name() string { return backendRedis }
