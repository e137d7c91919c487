package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/api-cache/pkg/cache"
	"github.com/Sternrassler/api-cache/pkg/config"
	"github.com/Sternrassler/api-cache/pkg/logging"
	"github.com/Sternrassler/api-cache/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Memory-backed examples keep entries for a short demo window.
const memoryExpiry = 10 * time.Second

type app struct {
	cfg    *config.Config
	redis  redis.UniversalClient
	memory *cache.MemoryStore
	logger zerolog.Logger
	now    func() time.Time
}

// newApp wires the demo endpoints. A nil rdb serves the "external" examples
// from memory as well.
func newApp(cfg *config.Config, rdb redis.UniversalClient, logger zerolog.Logger) *app {
	return &app{
		cfg:    cfg,
		redis:  rdb,
		memory: cache.NewMemoryStore(),
		logger: logger,
		now:    time.Now,
	}
}

func (a *app) Close() error {
	return a.memory.Close()
}

func (a *app) externalBackend() string {
	if a.redis == nil {
		return "memory"
	}
	return "redis"
}

func (a *app) memoryConfig(expiry time.Duration, keyFunc cache.KeyFunc) cache.Config {
	logger := a.logger.With().Str("component", "cache").Logger()
	return cache.Config{
		Memory:       a.memory,
		Expiry:       expiry,
		KeyFunc:      keyFunc,
		Coalesce:     a.cfg.Cache.Coalesce,
		MaxBodyBytes: a.cfg.Cache.MaxBodyBytes,
		Logger:       &logger,
	}
}

func (a *app) externalConfig(ctx context.Context) (cache.Config, error) {
	format, err := cache.ParseFormat(a.cfg.Cache.Format)
	if err != nil {
		return cache.Config{}, err
	}
	cfg := a.memoryConfig(a.cfg.Cache.Expiry.Std(), nil)
	cfg.Format = format
	if a.redis != nil {
		store, err := cache.NewRedisStore(ctx, a.redis,
			cache.WithPrefix(a.cfg.Redis.Prefix),
			cache.WithQueryTimeout(a.cfg.Redis.QueryTimeout.Std()),
		)
		if err != nil {
			return cache.Config{}, err
		}
		cfg.Store = store
	}
	return cfg, nil
}

// sexKey builds "<name>:<age>:<sex>" for example_2.
func sexKey(args cache.Params) (string, error) {
	return fmt.Sprintf("%s:%s:%s", args.String("name"), args.String("age"), args.String("sex")), nil
}

func (a *app) routes(ctx context.Context) (http.Handler, error) {
	mux := http.NewServeMux()
	mount := func(pattern, route string, h http.Handler) {
		mux.Handle(pattern, metrics.Instrument(route, h))
	}

	external, err := a.externalConfig(ctx)
	if err != nil {
		return nil, err
	}

	example1, err := cache.New(ctx, "example_1", a.greet, a.memoryConfig(memoryExpiry, nil))
	if err != nil {
		return nil, err
	}
	example2, err := cache.New(ctx, "example_2", a.describe, a.memoryConfig(memoryExpiry, sexKey))
	if err != nil {
		return nil, err
	}
	example3, err := cache.New(ctx, "example_3", a.greet, external)
	if err != nil {
		return nil, err
	}
	example4, err := cache.New(ctx, "example_4", a.profile, external)
	if err != nil {
		return nil, err
	}
	example5, err := cache.New(ctx, "example_5", a.profileResponse, external)
	if err != nil {
		return nil, err
	}
	example6, err := cache.New(ctx, "example_6", a.order, external)
	if err != nil {
		return nil, err
	}

	mount("GET /example_1/{name}", "example_1", example1)
	mount("GET /example_2/{name}/{age}", "example_2", requireInt("age", example2))
	mount("GET /example_3/{name}", "example_3", example3)
	mount("GET /example_4/{name}", "example_4", example4)
	mount("GET /example_5/{name}", "example_5", example5)
	mount("POST /example_6/{name}", "example_6", example6)

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", a.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	return logging.Middleware(a.logger, mux), nil
}

// requireInt answers 404 unless the path wildcard is an integer.
func requireInt(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := strconv.Atoi(r.PathValue(name)); err != nil {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *app) greet(_ context.Context, req *cache.Request) (string, error) {
	return fmt.Sprintf("Hello %s, generated at %s", req.PathArgs.String("name"), a.now().Format(time.RFC3339Nano)), nil
}

func (a *app) describe(_ context.Context, req *cache.Request) (string, error) {
	return fmt.Sprintf("%s is a %s years old %s.",
		req.PathArgs.String("name"), req.PathArgs.String("age"), req.Params.String("sex")), nil
}

func (a *app) profile(_ context.Context, req *cache.Request) (map[string]any, error) {
	return map[string]any{
		"name":         req.PathArgs.String("name"),
		"params":       map[string]any(req.Params),
		"generated_at": a.now().Format(time.RFC3339Nano),
	}, nil
}

func (a *app) profileResponse(ctx context.Context, req *cache.Request) (*cache.JSONResponse, error) {
	body, err := a.profile(ctx, req)
	if err != nil {
		return nil, err
	}
	return cache.JSON(body), nil
}

func (a *app) order(_ context.Context, req *cache.Request) (map[string]any, error) {
	return map[string]any{
		"name":       req.PathArgs.String("name"),
		"order":      map[string]any(req.Params),
		"created_at": a.now().Format(time.RFC3339Nano),
	}, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (a *app) readyHandler(w http.ResponseWriter, r *http.Request) {
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
