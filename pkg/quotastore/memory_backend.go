package quotastore

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count    int64
	expireAt time.Time
}

// MemoryBackend keeps counters in process memory.
// Expired counters are dropped lazily on access.
type MemoryBackend struct {
	mu       sync.Mutex
	counters map[Key]*memoryCounter
	now      func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
// now is used for lazy expiry; nil means time.Now.
func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{
		counters: make(map[Key]*memoryCounter),
		now:      now,
	}
}

func (b *MemoryBackend) IncrementBelow(ctx context.Context, key Key, limit int64, expireAt time.Time) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.lookup(key)
	if c == nil {
		c = &memoryCounter{}
		b.counters[key] = c
	}
	if c.count >= limit {
		return c.count, false, nil
	}
	c.count++
	c.expireAt = expireAt
	return c.count, true, nil
}

func (b *MemoryBackend) Get(ctx context.Context, key Key) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c := b.lookup(key); c != nil {
		return c.count, nil
	}
	return 0, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.counters, key)
	return nil
}

// Len returns the number of live counters.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for k := range b.counters {
		if b.lookup(k) != nil {
			n++
		}
	}
	return n
}

// lookup must be called with mu held.
func (b *MemoryBackend) lookup(key Key) *memoryCounter {
	c, ok := b.counters[key]
	if !ok {
		return nil
	}
	if !c.expireAt.IsZero() && !b.now().Before(c.expireAt) {
		delete(b.counters, key)
		return nil
	}
	return c
}
