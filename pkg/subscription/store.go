package subscription

import (
	"context"
	"sync"
	"time"
)

// Store persists one subscription record per user.
type Store interface {
	// Get returns ErrNotFound when the user has no record.
	Get(ctx context.Context, userID string) (*Record, error)

	// Save creates or replaces the user's record. It returns ErrStaleEvent
	// and keeps the stored record when record does not supersede it.
	Save(ctx context.Context, record *Record) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	now := time.Now().UTC()
	if existing, ok := s.records[r.UserID]; ok {
		if !r.Supersedes(&existing) {
			return ErrStaleEvent
		}
		r.CreatedAt = existing.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.records[r.UserID] = r
	return nil
}
