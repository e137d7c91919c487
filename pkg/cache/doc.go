// Package cache provides response caching for HTTP API handlers with an
// in-memory or Redis backend.
//
// A handler is wrapped once with New and then either called directly or
// mounted as an http.Handler:
//
// - Deterministic keys: "<handler>:<k=v&...>" sorted by parameter name, or a
//   custom KeyFunc
// - Two backends: a process-local MemoryStore holding native values, or a
//   Redis store holding serialized payloads with native expiry
// - Result shape fixed by the handler's Go type (string, mapping, *JSONResponse)
// - Optional per-key coalescing of concurrent misses
// - ETag / If-None-Match support when rendering
// - Prometheus metrics and OpenTelemetry spans
//
// # Basic Usage
//
//	greet := cache.MustNew(ctx, "example_1",
//		func(ctx context.Context, req *cache.Request) (string, error) {
//			return "Hello " + req.PathArgs.String("name"), nil
//		},
//		cache.Config{Expiry: 10 * time.Second},
//	)
//	mux.Handle("GET /example_1/{name}", greet)
//
// # Redis Backend
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Ping happens here; an unreachable server fails setup
//	order, err := cache.New(ctx, "example_6", createOrder, cache.Config{
//		Redis:  redisClient,
//		Expiry: time.Minute,
//	})
//
// # Custom Keys
//
//	cfg := cache.Config{
//		KeyFunc: func(args cache.Params) (string, error) {
//			return args.String("name") + ":" + args.String("age") + ":" + args.String("sex"), nil
//		},
//	}
//
// The key function receives path arguments merged with request parameters
// and its result is used verbatim: uniqueness is the caller's job.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - apicache_hits_total{backend} - Cache hits
//   - apicache_misses_total{backend} - Cache misses
//   - apicache_stored_bytes_total{backend} - Serialized bytes written
//   - apicache_handler_duration_seconds{handler} - Handler time on a miss
//   - apicache_coalesced_total - Misses that shared an in-flight call
//   - apicache_not_modified_total - 304 responses
//   - apicache_errors_total{operation} - Cache operation errors
package cache
