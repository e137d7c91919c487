package cache

import (
	"sync"
	"time"
)

// DefaultCleanupInterval is how often the memory store sweeps expired entries.
const DefaultCleanupInterval = time.Minute

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCleanupInterval sets the sweep interval. Zero or negative disables the
// background sweep; expired entries are then only dropped when read.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.cleanupInterval = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// MemoryStore is a process-local cache with per-entry expiry. Values are
// stored natively, without serialization.
type MemoryStore struct {
	mu              sync.RWMutex
	entries         map[string]*Entry
	now             func() time.Time
	cleanupInterval time.Duration
	stop            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
	closed          bool
}

// NewMemoryStore creates a memory store and starts its sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries:         make(map[string]*Entry),
		now:             time.Now,
		cleanupInterval: DefaultCleanupInterval,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cleanupInterval > 0 {
		go m.run()
	} else {
		close(m.done)
	}
	return m
}

var (
	defaultMemoryOnce  sync.Once
	defaultMemoryStore *MemoryStore
)

// DefaultMemoryStore returns the process-wide store used when a Config does
// not name one.
func DefaultMemoryStore() *MemoryStore {
	defaultMemoryOnce.Do(func() {
		defaultMemoryStore = NewMemoryStore()
	})
	return defaultMemoryStore
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (m *MemoryStore) Set(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[key] = &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		Expires:   now.Add(ttl),
	}
	return nil
}

// Entry returns a copy of the live entry stored under key. An expired entry
// is dropped on read.
func (m *MemoryStore) Entry(key string) (Entry, bool) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}

	if entry.expiredAt(now) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expiredAt(now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return Entry{}, false
	}
	return *entry, true
}

// Len returns the number of stored entries, including expired entries not
// yet swept.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the sweeper and drops all entries.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		m.closed = true
		m.entries = make(map[string]*Entry)
		m.mu.Unlock()
	})
	return nil
}

func (m *MemoryStore) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := m.now()
	m.mu.Lock()
	for key, entry := range m.entries {
		if entry.expiredAt(now) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}
