package cache

import (
	"time"
)

// Entry is a value held by the memory store.
type Entry struct {
	// Key is the cache key the entry is stored under
	Key string

	// Value is the handler result, stored as-is
	Value any

	// CreatedAt is when the entry was written
	CreatedAt time.Time

	// Expires is when the entry stops being served
	Expires time.Time
}

func (e *Entry) expiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// ttlAt returns the time left until expiry, floored at 0.
func (e *Entry) ttlAt(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
