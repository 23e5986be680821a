package audit

import (
	"context"
	"fmt"
	"time"
)

// Actions recorded by the usage gate.
const (
	ActionUsageLimitReached  = "usage_limit_reached"
	ActionUsageCheckDegraded = "usage_check_degraded"
	ActionUsageReset         = "usage_reset"
	ActionSubscriptionSynced = "subscription_synced"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is a single audit entry.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Result    Result         `json:"result"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption customizes an Event before it is stored.
type EventOption func(*Event)

// Storage persists events one at a time.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// BatchStorage persists a batch of events atomically.
type BatchStorage interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// WithUserID sets the user the event is about.
func WithUserID(id string) EventOption {
	return func(e *Event) {
		e.UserID = id
	}
}

// WithResource sets the affected resource, e.g. a feature kind.
func WithResource(resource string) EventOption {
	return func(e *Event) {
		e.Resource = resource
	}
}

func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}
