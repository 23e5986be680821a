package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/usagegate/pkg/audit"
)

type recordingBatch struct {
	mu      sync.Mutex
	batches [][]audit.Event
	err     error
}

func (r *recordingBatch) StoreBatch(_ context.Context, events []audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]audit.Event(nil), events...))
	return r.err
}

func (r *recordingBatch) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestAsyncStorageFlushesOnBatchSize(t *testing.T) {
	t.Parallel()

	rec := &recordingBatch{}
	s := audit.NewAsyncStorage(rec, audit.AsyncOptions{BatchSize: 5, BatchTimeout: time.Hour})

	for i := range 10 {
		require.NoError(t, s.Store(context.Background(), audit.Event{ID: string(rune('a' + i)), Action: "x"}))
	}

	assert.Eventually(t, func() bool { return rec.total() == 10 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
}

func TestAsyncStorageFlushesOnTimeout(t *testing.T) {
	t.Parallel()

	rec := &recordingBatch{}
	s := audit.NewAsyncStorage(rec, audit.AsyncOptions{BatchSize: 100, BatchTimeout: 10 * time.Millisecond})
	defer s.Close(context.Background())

	require.NoError(t, s.Store(context.Background(), audit.Event{ID: "1", Action: "x"}))
	assert.Eventually(t, func() bool { return rec.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncStorageCloseDrains(t *testing.T) {
	t.Parallel()

	rec := &recordingBatch{}
	s := audit.NewAsyncStorage(rec, audit.AsyncOptions{BatchSize: 100, BatchTimeout: time.Hour})

	for range 3 {
		require.NoError(t, s.Store(context.Background(), audit.Event{ID: "e", Action: "x"}))
	}
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 3, rec.total())

	err := s.Store(context.Background(), audit.Event{ID: "late", Action: "x"})
	assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)

	// Closing twice is safe.
	require.NoError(t, s.Close(context.Background()))
}

func TestAsyncStorageFlushErrorDoesNotSurface(t *testing.T) {
	t.Parallel()

	rec := &recordingBatch{err: errors.New("db down")}
	s := audit.NewAsyncStorage(rec, audit.AsyncOptions{BatchSize: 1})

	assert.NoError(t, s.Store(context.Background(), audit.Event{ID: "1", Action: "x"}))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, rec.total())
}

func TestAsyncStorageNilPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { audit.NewAsyncStorage(nil, audit.AsyncOptions{}) })
}
