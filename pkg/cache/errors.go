package cache

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreUnavailable indicates the external store did not answer the liveness probe
	ErrStoreUnavailable = errors.New("cache store not available")

	// ErrKeyFunc marks failures raised by a user-supplied key function
	ErrKeyFunc = errors.New("key function failed")

	// ErrEmptyKey indicates a key function returned an empty key
	ErrEmptyKey = errors.New("cache key is empty")

	// ErrEncode indicates a handler result could not be serialized
	ErrEncode = errors.New("encode cache value")

	// ErrDecode indicates a stored payload could not be deserialized
	ErrDecode = errors.New("decode cache value")

	// ErrShapeMismatch indicates a handler returned a value whose shape differs
	// from the shape declared for it
	ErrShapeMismatch = errors.New("response shape mismatch")

	// ErrInvalidBody indicates the request body is not a JSON object
	ErrInvalidBody = errors.New("invalid request body")

	// ErrNilHandler is returned by New when no handler is supplied
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrClosed is returned by a closed memory store
	ErrClosed = errors.New("cache store closed")
)
