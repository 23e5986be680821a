package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor returns (value, found) for a request-scoped value.
type contextExtractor func(context.Context) (string, bool)

// Logger builds events and hands them to a Storage.
type Logger struct {
	storage            Storage
	userIDExtractor    contextExtractor
	requestIDExtractor contextExtractor
	now                func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithUserIDExtractor fills Event.UserID from the context when no
// WithUserID option is given.
func WithUserIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.userIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger writing to storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultSuccess)
	return l.store(ctx, event, opts)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultError)
	if err != nil {
		event.Error = err.Error()
	}
	return l.store(ctx, event, opts)
}

func (l *Logger) store(ctx context.Context, event Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *Logger) newEvent(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}

	if l.userIDExtractor != nil {
		if id, ok := l.userIDExtractor(ctx); ok {
			event.UserID = id
		}
	}
	if l.requestIDExtractor != nil {
		if id, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = id
		}
	}

	return event
}
