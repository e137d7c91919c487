package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiry is how long results are cached when Config.Expiry is zero.
const DefaultExpiry = 24 * time.Hour

var tracer = otel.Tracer("github.com/Sternrassler/api-cache/pkg/cache")

// HandlerFunc produces the result for one request. The result type T fixes
// the shape the cache stores and returns.
type HandlerFunc[T any] func(ctx context.Context, req *Request) (T, error)

// Config selects the backend and key policy for a cached handler.
type Config struct {
	// Redis is the shared store handle. Nil selects the in-memory backend.
	Redis redis.UniversalClient

	// Store overrides Redis with any Store implementation.
	Store Store

	// Memory is the in-memory store to use; nil means DefaultMemoryStore.
	Memory *MemoryStore

	// KeyFunc replaces the default "<name>:<query>" key.
	KeyFunc KeyFunc

	// Expiry is the entry lifetime (default 24h).
	Expiry time.Duration

	// Shape must be declared when the result type is an interface.
	Shape Shape

	// Format is the external store serialization (default JSON).
	Format Format

	// KeyPrefix namespaces keys in Redis.
	KeyPrefix string

	// Coalesce makes concurrent misses on one key share a single handler call.
	Coalesce bool

	// MaxBodyBytes caps the JSON body ServeHTTP reads (default 1 MiB).
	MaxBodyBytes int64

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Cached wraps a handler with response caching.
//
// On each call the key is derived from the request, the backend is queried,
// and on a hit the stored value is returned without invoking the handler. On
// a miss the handler runs and its result is stored synchronously before it
// is returned.
type Cached[T any] struct {
	name     string
	handler  HandlerFunc[T]
	backend  backend[T]
	keyFunc  KeyFunc
	expiry   time.Duration
	shape    Shape
	coalesce bool
	maxBody  int64
	flight   singleflight.Group
	logger   zerolog.Logger
}

// New wraps handler under the identity name. When an external store is
// configured it must answer a ping, otherwise New fails with
// ErrStoreUnavailable.
func New[T any](ctx context.Context, name string, handler HandlerFunc[T], cfg Config) (*Cached[T], error) {
	if handler == nil {
		return nil, errors.Wrapf(ErrNilHandler, "handler %s", name)
	}

	shape, err := resolveShape[T](cfg.Shape)
	if err != nil {
		return nil, errors.Wrapf(err, "handler %s", name)
	}

	expiry := cfg.Expiry
	if expiry == 0 {
		expiry = DefaultExpiry
	}

	var logger zerolog.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	} else {
		logger = log.With().Str("component", "cache").Logger()
	}

	c := &Cached[T]{
		name:     name,
		handler:  handler,
		keyFunc:  cfg.KeyFunc,
		expiry:   expiry,
		shape:    shape,
		coalesce: cfg.Coalesce,
		maxBody:  cfg.MaxBodyBytes,
		logger:   logger.With().Str("handler", name).Logger(),
	}

	store := cfg.Store
	switch {
	case store != nil:
		if err := store.Ping(ctx); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "handler %s", name), ErrStoreUnavailable)
		}
	case cfg.Redis != nil:
		redisStore, err := NewRedisStore(ctx, cfg.Redis, WithPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, errors.Wrapf(err, "handler %s", name)
		}
		store = redisStore
	}

	if store != nil {
		c.backend = &storeBackend[T]{store: store, codec: NewCodec(cfg.Format), shape: shape}
	} else {
		memory := cfg.Memory
		if memory == nil {
			memory = DefaultMemoryStore()
		}
		c.backend = &memoryBackend[T]{store: memory}
	}

	c.logger.Debug().
		Str("backend", c.backend.name()).
		Str("shape", shape.String()).
		Dur("ttl", expiry).
		Msg("Cached handler configured")

	return c, nil
}

// MustNew is like New but panics on error. Intended for route setup.
func MustNew[T any](ctx context.Context, name string, handler HandlerFunc[T], cfg Config) *Cached[T] {
	c, err := New(ctx, name, handler, cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func resolveShape[T any](declared Shape) (Shape, error) {
	static := ShapeFor[T]()
	switch {
	case static == ShapeAuto && declared == ShapeAuto:
		return ShapeAuto, errors.New("shape must be declared for an interface result type")
	case static == ShapeAuto:
		return declared, nil
	case declared != ShapeAuto && declared != static:
		return ShapeAuto, errors.Wrapf(ErrShapeMismatch, "declared %s, result type is %s", declared, static)
	default:
		return static, nil
	}
}

// Name returns the handler identity used in default keys.
func (c *Cached[T]) Name() string { return c.name }

// Backend returns "memory" or "redis".
func (c *Cached[T]) Backend() string { return c.backend.name() }

// Shape returns the shape stored for this handler.
func (c *Cached[T]) Shape() Shape { return c.shape }

// Key returns the cache key a request maps to.
func (c *Cached[T]) Key(req *Request) (string, error) {
	if req == nil {
		req = &Request{}
	}
	return BuildKey(c.name, req.PathArgs, req.Params, c.keyFunc)
}

// Call returns the cached result for req, invoking the handler on a miss.
func (c *Cached[T]) Call(ctx context.Context, req *Request) (T, error) {
	value, _, err := c.call(ctx, req)
	return value, err
}

func (c *Cached[T]) call(ctx context.Context, req *Request) (T, bool, error) {
	var zero T
	backendName := c.backend.name()

	ctx, span := tracer.Start(ctx, "cache.Call", trace.WithAttributes(
		attribute.String("cache.handler", c.name),
		attribute.String("cache.backend", backendName),
	))
	defer span.End()

	key, err := c.Key(req)
	if err != nil {
		CacheErrors.WithLabelValues("key").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "key")
		return zero, false, err
	}

	value, ttl, ok, err := c.backend.get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Str("backend", backendName).Msg("Cache get error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "get")
		return zero, false, errors.Wrapf(err, "cache lookup for %s", c.name)
	}
	if ok {
		CacheHits.WithLabelValues(backendName).Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		event := c.logger.Debug().Str("cache_key", key).Str("backend", backendName)
		if ttl > 0 {
			event = event.Dur("ttl_remaining", ttl)
		}
		event.Msg("Cache hit")
		return value, true, nil
	}

	CacheMisses.WithLabelValues(backendName).Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))
	c.logger.Debug().Str("cache_key", key).Str("backend", backendName).Msg("Cache miss")

	if !c.coalesce {
		value, err = c.fill(ctx, req, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fill")
		}
		return value, false, err
	}

	// The shared fill outlives any one caller; each caller still stops
	// waiting when its own context ends.
	fillCtx := context.WithoutCancel(ctx)
	results := c.flight.DoChan(key, func() (any, error) {
		return c.fill(fillCtx, req, key)
	})

	select {
	case <-ctx.Done():
		err := errors.Wrapf(ctx.Err(), "waiting on %s", c.name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill")
		return zero, false, err
	case res := <-results:
		if res.Shared {
			Coalesced.Inc()
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "fill")
			return zero, false, res.Err
		}
		typed, _ := res.Val.(T)
		return typed, false, nil
	}
}

// fill runs the handler and stores its result.
func (c *Cached[T]) fill(ctx context.Context, req *Request, key string) (T, error) {
	var zero T

	start := time.Now()
	value, err := c.handler(ctx, req)
	HandlerDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Handler failed, nothing cached")
		return zero, err
	}

	if shape := ShapeOf(value); shape != c.shape {
		return zero, errors.Wrapf(ErrShapeMismatch, "handler %s declared %s, returned %s", c.name, c.shape, shape)
	}

	if err := c.backend.set(ctx, key, value, c.expiry); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Str("backend", c.backend.name()).Msg("Cache set error")
		return zero, errors.Wrapf(err, "cache store for %s", c.name)
	}

	c.logger.Debug().
		Str("cache_key", key).
		Str("backend", c.backend.name()).
		Dur("ttl", c.expiry).
		Msg("Cache set")

	return value, nil
}

// ServeHTTP extracts the request parameters, serves the cached or fresh
// result and renders it. Bad bodies get 400, oversized bodies 413 and any
// other failure 500.
func (c *Cached[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := NewRequest(r, WithMaxBodyBytes(c.maxBody))
	if err != nil {
		c.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejecting request")
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}

	value, hit, err := c.call(r.Context(), req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Cached handler failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if hit {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}

	if err := Render(w, r, value); err != nil {
		if errors.Is(err, ErrEncode) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		c.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to render response")
	}
}
