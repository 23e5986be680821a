// Package tier reconciles the entitlement source and the persisted
// subscription record into the user's effective tier.
package tier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/entitlement"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
)

const (
	DefaultEntitlementTimeout = 3 * time.Second
	DefaultRecordTimeout      = 3 * time.Second
)

// Resolver determines a user's tier. The entitlement source is authoritative
// when it grants; otherwise the persisted record decides; otherwise free.
type Resolver struct {
	entitlements       entitlement.Source
	records            subscription.Store
	log                *slog.Logger
	now                func() time.Time
	entitlementTimeout time.Duration
	recordTimeout      time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEntitlementTimeout bounds each entitlement source call.
func WithEntitlementTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.entitlementTimeout = d
		}
	}
}

// WithRecordTimeout bounds each subscription store read.
func WithRecordTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.recordTimeout = d
		}
	}
}

// New creates a Resolver. A nil source behaves as entitlement.Unsupported and
// a nil store as a user without a record.
func New(source entitlement.Source, store subscription.Store, opts ...Option) *Resolver {
	if source == nil {
		source = entitlement.Unsupported{}
	}
	r := &Resolver{
		entitlements:       source,
		records:            store,
		log:                slog.Default(),
		now:                time.Now,
		entitlementTimeout: DefaultEntitlementTimeout,
		recordTimeout:      DefaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("tier_resolver"))
	return r
}

// Resolve returns the effective tier for userID. It never fails: every
// source error degrades toward free.
func (r *Resolver) Resolve(ctx context.Context, userID string) quota.Tier {
	if r.hasEntitlement(ctx, userID) {
		return quota.TierPremium
	}
	return r.recordTier(ctx, userID)
}

func (r *Resolver) hasEntitlement(ctx context.Context, userID string) (granted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorContext(ctx, "entitlement source panicked", logger.UserID(userID), slog.Any("panic", rec))
			granted = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.entitlementTimeout)
	defer cancel()

	ok, err := r.entitlements.HasUnlimitedEntitlement(ctx, userID)
	if err != nil {
		r.log.WarnContext(ctx, "entitlement check failed, falling back to subscription record",
			logger.UserID(userID),
			logger.Error(err),
		)
		return false
	}
	return ok
}

func (r *Resolver) recordTier(ctx context.Context, userID string) (t quota.Tier) {
	if r.records == nil {
		return quota.TierFree
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorContext(ctx, "subscription store panicked", logger.UserID(userID), slog.Any("panic", rec))
			t = quota.TierFree
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.recordTimeout)
	defer cancel()

	record, err := r.records.Get(ctx, userID)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		return quota.TierFree
	case err != nil:
		r.log.WarnContext(ctx, "subscription record lookup failed, assuming free tier",
			logger.UserID(userID),
			logger.Error(err),
		)
		return quota.TierFree
	}

	return record.EffectiveTier(r.now())
}
