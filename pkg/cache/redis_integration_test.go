//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/api-cache/internal/testutil"
	"github.com/Sternrassler/api-cache/pkg/cache"
)

// TestRedisBackend_RealServer runs the Redis backend against a real Redis.
func TestRedisBackend_RealServer(t *testing.T) {
	client := testutil.StartRedisContainer(t)
	ctx := context.Background()

	calls := testutil.NewCalls()
	order, err := cache.New(ctx, "example_6", func(_ context.Context, req *cache.Request) (map[string]any, error) {
		calls.Record("example_6")
		return map[string]any(req.Params), nil
	}, cache.Config{Redis: client, Expiry: 2 * time.Second, KeyPrefix: "it"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := &cache.Request{
		PathArgs: cache.Params{"name": "jimmy"},
		Params:   cache.Params{"items": "coffee", "price": 18},
	}

	first, err := order.Call(ctx, req)
	if err != nil {
		t.Fatalf("first Call() error = %v", err)
	}
	second, err := order.Call(ctx, req)
	if err != nil {
		t.Fatalf("second Call() error = %v", err)
	}

	if calls.Count("example_6") != 1 {
		t.Errorf("handler ran %d times, want 1", calls.Count("example_6"))
	}
	if first["items"] != second["items"] {
		t.Errorf("cached mapping = %v, want %v", second, first)
	}

	ttl, err := client.TTL(ctx, "it:example_6:items=coffee&name=jimmy&price=18").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Second {
		t.Errorf("TTL = %v, want (0, 2s]", ttl)
	}

	time.Sleep(2500 * time.Millisecond)
	if _, err := order.Call(ctx, req); err != nil {
		t.Fatalf("Call() after expiry error = %v", err)
	}
	if calls.Count("example_6") != 2 {
		t.Errorf("handler ran %d times after expiry, want 2", calls.Count("example_6"))
	}
}
