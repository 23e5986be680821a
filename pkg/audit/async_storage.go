package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/logger"
)

// AsyncOptions configures batching and buffering.
type AsyncOptions struct {
	BufferSize     int           // events queued in memory before Store writes synchronously
	BatchSize      int           // events per flush
	BatchTimeout   time.Duration // max time a partial batch waits
	StorageTimeout time.Duration // per-flush deadline
	Logger         *slog.Logger  // receives flush failures
}

// AsyncStorage queues events and flushes them in batches from a background
// goroutine, so request paths never wait on the audit backend.
type AsyncStorage struct {
	next    BatchStorage
	events  chan Event
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	options AsyncOptions
}

// NewAsyncStorage starts the flush worker. Call Close on shutdown.
func NewAsyncStorage(next BatchStorage, opts AsyncOptions) *AsyncStorage {
	if next == nil {
		panic("audit: batch storage cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &AsyncStorage{
		next:    next,
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Store enqueues the event. When the buffer is full it writes synchronously
// instead of dropping the event.
func (s *AsyncStorage) Store(ctx context.Context, event Event) error {
	select {
	case <-s.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.next.StoreBatch(ctx, []Event{event})
	}
}

func (s *AsyncStorage) worker() {
	defer s.wg.Done()

	batch := make([]Event, 0, s.options.BatchSize)
	ticker := time.NewTicker(s.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		// Detached from request contexts so a cancelled request cannot drop events.
		ctx, cancel := context.WithTimeout(context.Background(), s.options.StorageTimeout)
		defer cancel()

		if err := s.next.StoreBatch(ctx, batch); err != nil {
			s.options.Logger.Error("failed to flush audit events",
				logger.Component("audit"),
				logger.Count(int64(len(batch))),
				logger.Error(err),
			)
		}

		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.events:
			batch = append(batch, e)
			if len(batch) >= s.options.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.done:
			for {
				select {
				case e := <-s.events:
					batch = append(batch, e)
					if len(batch) >= s.options.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes what is queued. The context
// bounds how long Close waits for the final flush.
func (s *AsyncStorage) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
