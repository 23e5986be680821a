package quotastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/quota"
)

// DefaultExpiryGrace keeps counters around after their bucket ends.
const DefaultExpiryGrace = 24 * time.Hour

// Meter implements Store over a Backend using the policy table.
// It is safe for concurrent use.
type Meter struct {
	table   *quota.Table
	backend Backend
	now     func() time.Time
	grace   time.Duration
}

// Option configures a Meter.
type Option func(*Meter)

// WithClock overrides the time source used to derive period buckets.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithExpiryGrace sets how long counters outlive their bucket.
func WithExpiryGrace(d time.Duration) Option {
	return func(m *Meter) {
		if d >= 0 {
			m.grace = d
		}
	}
}

// New creates a Meter. It panics when table or backend is nil.
func New(table *quota.Table, backend Backend, opts ...Option) *Meter {
	if table == nil {
		panic("quotastore: nil policy table")
	}
	if backend == nil {
		panic("quotastore: nil backend")
	}

	m := &Meter{
		table:   table,
		backend: backend,
		now:     time.Now,
		grace:   DefaultExpiryGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckAndIncrement implements Store.
func (m *Meter) CheckAndIncrement(ctx context.Context, userID string, feature quota.FeatureKind, tier quota.Tier) (Result, error) {
	limit, err := m.table.LimitFor(feature, tier)
	if err != nil {
		return Result{}, err
	}
	if limit == quota.Unlimited {
		return unlimitedResult(), nil
	}

	key, expireAt, err := m.key(userID, feature)
	if err != nil {
		return Result{}, err
	}

	// A zero limit denies without creating a counter.
	if limit == 0 {
		count, err := m.backend.Get(ctx, key)
		if err != nil {
			return Result{}, wrapBackendError(err)
		}
		return newResult(false, count, limit), nil
	}

	count, ok, err := m.backend.IncrementBelow(ctx, key, limit, expireAt)
	if err != nil {
		return Result{}, wrapBackendError(err)
	}
	return newResult(ok, count, limit), nil
}

// Status implements Store.
func (m *Meter) Status(ctx context.Context, userID string, feature quota.FeatureKind, tier quota.Tier) (Result, error) {
	limit, err := m.table.LimitFor(feature, tier)
	if err != nil {
		return Result{}, err
	}
	if limit == quota.Unlimited {
		return unlimitedResult(), nil
	}

	key, _, err := m.key(userID, feature)
	if err != nil {
		return Result{}, err
	}

	count, err := m.backend.Get(ctx, key)
	if err != nil {
		return Result{}, wrapBackendError(err)
	}
	return newResult(count < limit, count, limit), nil
}

// Reset implements Store.
func (m *Meter) Reset(ctx context.Context, userID string, feature quota.FeatureKind) error {
	key, _, err := m.key(userID, feature)
	if err != nil {
		return err
	}
	if err := m.backend.Delete(ctx, key); err != nil {
		return wrapBackendError(err)
	}
	return nil
}

func (m *Meter) key(userID string, feature quota.FeatureKind) (Key, time.Time, error) {
	policy, err := m.table.PolicyFor(feature)
	if err != nil {
		return Key{}, time.Time{}, err
	}

	now := m.now()
	bucket, err := quota.BucketFor(policy.Period, now)
	if err != nil {
		return Key{}, time.Time{}, err
	}
	end, err := quota.BucketEnd(policy.Period, now)
	if err != nil {
		return Key{}, time.Time{}, err
	}

	key := Key{UserID: userID, Feature: feature, Bucket: bucket}
	if err := key.validate(); err != nil {
		return Key{}, time.Time{}, err
	}
	return key, end.Add(m.grace), nil
}

func newResult(allowed bool, count, limit int64) Result {
	return Result{
		Allowed:      allowed,
		CurrentCount: count,
		Limit:        limit,
		Remaining:    max(0, limit-count),
	}
}

func unlimitedResult() Result {
	return Result{
		Allowed:   true,
		Limit:     quota.Unlimited,
		Remaining: quota.Unlimited,
	}
}

func wrapBackendError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
