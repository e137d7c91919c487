package testutil

import (
	"sync"
	"testing"
)

func TestCalls(t *testing.T) {
	calls := NewCalls()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calls.Record("example_1")
		}()
	}
	wg.Wait()
	calls.Record("example_2")

	if got := calls.Count("example_1"); got != 10 {
		t.Errorf("Count(example_1) = %d, want 10", got)
	}
	if got := calls.Total(); got != 11 {
		t.Errorf("Total() = %d, want 11", got)
	}

	calls.Reset()
	if calls.Total() != 0 || calls.Count("example_1") != 0 {
		t.Error("Reset() should clear all counters")
	}
}

func TestStartMiniRedis(t *testing.T) {
	mr, client := StartMiniRedis(t)

	if err := client.Set(t.Context(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("miniredis value = %q, want v", got)
	}
}
