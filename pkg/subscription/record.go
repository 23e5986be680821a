package subscription

import (
	"strings"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/quota"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusPaused   Status = "paused"
	StatusExpired  Status = "expired"
)

// ParseStatus normalizes a provider status. "cancelled" is accepted as canceled.
func ParseStatus(s string) Status {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case "cancelled":
		return StatusCanceled
	default:
		return v
	}
}

// Record is the backend's persisted view of a user's subscription.
type Record struct {
	UserID           string
	Tier             quota.Tier
	Status           Status
	Provider         string
	ProviderSubID    string
	CurrentPeriodEnd *time.Time
	// LastEventAt is when the provider event this record reflects occurred.
	// Zero for records not derived from an event.
	LastEventAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grants reports whether the record entitles its tier at now: the status is
// active or trialing and the current period, when known, has not ended.
func (r *Record) Grants(now time.Time) bool {
	if r == nil {
		return false
	}
	if r.Status != StatusActive && r.Status != StatusTrialing {
		return false
	}
	if r.CurrentPeriodEnd != nil && !now.Before(*r.CurrentPeriodEnd) {
		return false
	}
	return true
}

// EffectiveTier returns the tier the record grants at now, or free.
func (r *Record) EffectiveTier(now time.Time) quota.Tier {
	if !r.Grants(now) {
		return quota.TierFree
	}
	return r.Tier.Effective()
}

// Supersedes reports whether r may replace existing. Provider events arrive
// out of order, so only a strictly newer event wins once existing is ordered.
func (r *Record) Supersedes(existing *Record) bool {
	if existing == nil || existing.LastEventAt.IsZero() {
		return true
	}
	return r.LastEventAt.After(existing.LastEventAt)
}

// Validate checks the fields required for persistence.
func (r *Record) Validate() error {
	if r == nil || strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidRecord
	}
	if r.Status == "" {
		return ErrInvalidRecord
	}
	return nil
}
