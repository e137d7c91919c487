package testutil

import (
	"sync"
)

// Calls records handler invocations so tests can assert how often the
// wrapped handler actually ran.
type Calls struct {
	mu     sync.Mutex
	count  int
	byName map[string]int
}

// NewCalls creates an empty recorder.
func NewCalls() *Calls {
	return &Calls{byName: make(map[string]int)}
}

// Record notes one invocation of name and returns the total for that name.
func (c *Calls) Record(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.byName[name]++
	return c.byName[name]
}

// Count returns the invocations recorded for name.
func (c *Calls) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byName[name]
}

// Total returns all recorded invocations.
func (c *Calls) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Reset clears all counters.
func (c *Calls) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.byName = make(map[string]int)
}
