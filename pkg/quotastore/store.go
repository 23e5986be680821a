package quotastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/quota"
)

// Result is the outcome of a counter operation.
type Result struct {
	Allowed      bool
	CurrentCount int64
	Limit        int64
	Remaining    int64
}

// Status converts the result into a quota status.
func (r Result) Status() quota.Status {
	if r.Limit == quota.Unlimited {
		return quota.UnlimitedStatus()
	}
	return quota.NewStatus(r.CurrentCount, r.Limit)
}

// Store is the quota store contract consumed by the usage gate.
type Store interface {
	// CheckAndIncrement atomically checks the counter against the tier limit
	// and increments it only when the call is allowed.
	CheckAndIncrement(ctx context.Context, userID string, feature quota.FeatureKind, tier quota.Tier) (Result, error)

	// Status reads the counter without mutating it.
	Status(ctx context.Context, userID string, feature quota.FeatureKind, tier quota.Tier) (Result, error)

	// Reset clears the counter of the current period.
	Reset(ctx context.Context, userID string, feature quota.FeatureKind) error
}

// Key identifies a single counter.
type Key struct {
	UserID  string
	Feature quota.FeatureKind
	Bucket  string
}

// String renders the key as usage:{user}:{feature}:{bucket}.
func (k Key) String() string {
	return "usage:" + k.UserID + ":" + string(k.Feature) + ":" + k.Bucket
}

func (k Key) validate() error {
	if strings.TrimSpace(k.UserID) == "" || k.Feature == "" || k.Bucket == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Backend is the atomic counter primitive a storage engine provides.
type Backend interface {
	// IncrementBelow increments the counter at key when its value is below limit.
	// It returns the counter value after the call and whether it was incremented.
	// expireAt is a hint for engines that support key expiry.
	IncrementBelow(ctx context.Context, key Key, limit int64, expireAt time.Time) (count int64, incremented bool, err error)

	// Get returns the counter value, zero when it does not exist.
	Get(ctx context.Context, key Key) (int64, error)

	// Delete removes the counter.
	Delete(ctx context.Context, key Key) error
}
