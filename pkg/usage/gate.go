package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/environment"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/metrics"
	"github.com/dmitrymomot/usagegate/pkg/principal"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/quotastore"
)

// TierResolver returns a user's effective tier. *tier.Resolver satisfies it.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) quota.Tier
}

// Gate decides whether a user may consume a metered feature.
// It is safe for concurrent use and keeps no per-user state: the tier is
// resolved on every call and the quota store is the only counter.
type Gate struct {
	table    *quota.Table
	resolver TierResolver
	store    quotastore.Store

	log          *slog.Logger
	auditor      Auditor
	metrics      *metrics.Metrics
	policy       FailurePolicy
	storeTimeout time.Duration
	env          environment.Environment
}

// New creates a Gate. It panics when a required dependency is nil.
func New(table *quota.Table, resolver TierResolver, store quotastore.Store, opts ...Option) *Gate {
	if table == nil {
		panic("usage: nil policy table")
	}
	if resolver == nil {
		panic("usage: nil tier resolver")
	}
	if store == nil {
		panic("usage: nil quota store")
	}

	g := &Gate{
		table:        table,
		resolver:     resolver,
		store:        store,
		log:          slog.Default(),
		policy:       DegradedAllow,
		storeTimeout: DefaultStoreTimeout,
		env:          environment.Production,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("usage_gate"))
	return g
}

// CheckAndIncrement decides whether userID may use feature now and, when
// allowed on a limited tier, records the consumption. An empty userID is
// taken from the context. Exhausted quota is a denied Decision, not an error.
func (g *Gate) CheckAndIncrement(ctx context.Context, feature quota.FeatureKind, userID string) (quota.Decision, error) {
	if _, err := g.table.PolicyFor(feature); err != nil {
		return quota.Decision{}, err
	}
	uid, err := principal.Resolve(ctx, userID)
	if err != nil {
		return quota.Decision{}, err
	}

	tier := g.resolveTier(ctx, uid)
	if tier.IsUnlimited() {
		g.metrics.ObserveDecision(string(feature), string(tier), metrics.OutcomeAllowed)
		return quota.Decision{Allowed: true, Status: quota.UnlimitedStatus()}, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	start := time.Now()
	res, err := g.store.CheckAndIncrement(storeCtx, uid, feature, tier)
	g.metrics.ObserveStoreCall(string(feature), "check_and_increment", time.Since(start), err)

	if err != nil {
		if errors.Is(err, quota.ErrUnknownFeature) {
			return quota.Decision{}, err
		}
		return g.degradedDecision(ctx, uid, feature, tier, err)
	}

	if !res.Allowed {
		g.metrics.ObserveDecision(string(feature), string(tier), metrics.OutcomeDenied)
		g.audit(ctx, audit.ActionUsageLimitReached, nil, uid,
			audit.WithResource(string(feature)),
			audit.WithResult(audit.ResultFailure),
			audit.WithMetadata("tier", string(tier)),
			audit.WithMetadata("limit", res.Limit),
			audit.WithMetadata("current_count", res.CurrentCount),
		)
		g.log.InfoContext(ctx, "usage limit reached",
			logger.UserID(uid),
			logger.Feature(feature),
			logger.Tier(tier),
			logger.Limit(res.Limit),
		)
		return quota.Decision{Allowed: false, Status: res.Status()}, nil
	}

	g.metrics.ObserveDecision(string(feature), string(tier), metrics.OutcomeAllowed)
	return quota.Decision{Allowed: true, Status: res.Status()}, nil
}

// Status reports consumption of feature without mutating it. When the quota
// store fails the result is a degraded status showing the full limit.
func (g *Gate) Status(ctx context.Context, feature quota.FeatureKind, userID string) (quota.Status, error) {
	if _, err := g.table.PolicyFor(feature); err != nil {
		return quota.Status{}, err
	}
	uid, err := principal.Resolve(ctx, userID)
	if err != nil {
		return quota.Status{}, err
	}

	return g.status(ctx, uid, feature, g.resolveTier(ctx, uid))
}

// AllStatus reports every feature for the user. The tier is resolved once
// and features are queried concurrently.
func (g *Gate) AllStatus(ctx context.Context, userID string) (map[quota.FeatureKind]quota.Status, error) {
	uid, err := principal.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := g.resolveTier(ctx, uid)
	features := g.table.Features()
	statuses := make([]quota.Status, len(features))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, f := range features {
		eg.Go(func() error {
			s, err := g.status(egCtx, uid, f, tier)
			if err != nil {
				return err
			}
			statuses[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[quota.FeatureKind]quota.Status, len(features))
	for i, f := range features {
		out[f] = statuses[i]
	}
	return out, nil
}

// ResetUsage clears the user's counter for feature in the current period.
// Only available in development.
func (g *Gate) ResetUsage(ctx context.Context, feature quota.FeatureKind, userID string) error {
	if !g.env.IsDevelopment() {
		return ErrResetNotAllowed
	}
	if _, err := g.table.PolicyFor(feature); err != nil {
		return err
	}
	uid, err := principal.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	start := time.Now()
	err = g.store.Reset(storeCtx, uid, feature)
	g.metrics.ObserveStoreCall(string(feature), "reset", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("reset %s for %s: %w", feature, uid, err)
	}

	g.audit(ctx, audit.ActionUsageReset, nil, uid, audit.WithResource(string(feature)))
	return nil
}

func (g *Gate) status(ctx context.Context, uid string, feature quota.FeatureKind, tier quota.Tier) (quota.Status, error) {
	if tier.IsUnlimited() {
		return quota.UnlimitedStatus(), nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	start := time.Now()
	res, err := g.store.Status(storeCtx, uid, feature, tier)
	g.metrics.ObserveStoreCall(string(feature), "status", time.Since(start), err)

	if err != nil {
		if errors.Is(err, quota.ErrUnknownFeature) {
			return quota.Status{}, err
		}
		limit, lerr := g.table.LimitFor(feature, tier)
		if lerr != nil {
			return quota.Status{}, lerr
		}
		g.log.WarnContext(ctx, "quota store unavailable, reporting best-effort status",
			logger.UserID(uid),
			logger.Feature(feature),
			logger.Error(err),
		)
		s := quota.NewStatus(0, limit)
		s.Degraded = true
		return s, nil
	}

	return res.Status(), nil
}

func (g *Gate) degradedDecision(ctx context.Context, uid string, feature quota.FeatureKind, tier quota.Tier, cause error) (quota.Decision, error) {
	limit, err := g.table.LimitFor(feature, tier)
	if err != nil {
		return quota.Decision{}, err
	}

	status := quota.NewStatus(0, limit)
	status.Degraded = true

	allowed := g.policy == DegradedAllow
	outcome := metrics.OutcomeDegradedAllow
	if !allowed {
		status.Remaining = 0
		outcome = metrics.OutcomeDegradedDeny
	}
	g.metrics.ObserveDecision(string(feature), string(tier), outcome)

	g.log.WarnContext(ctx, "quota store unavailable, applying failure policy",
		logger.UserID(uid),
		logger.Feature(feature),
		logger.Tier(tier),
		slog.String("policy", string(g.policy)),
		logger.Error(cause),
	)
	g.audit(ctx, audit.ActionUsageCheckDegraded, cause, uid,
		audit.WithResource(string(feature)),
		audit.WithMetadata("tier", string(tier)),
		audit.WithMetadata("policy", string(g.policy)),
		audit.WithMetadata("allowed", allowed),
	)

	return quota.Decision{Allowed: allowed, Status: status}, nil
}

func (g *Gate) resolveTier(ctx context.Context, uid string) quota.Tier {
	tier := g.resolver.Resolve(ctx, uid).Effective()
	g.metrics.ObserveTier(string(tier))
	return tier
}

func (g *Gate) audit(ctx context.Context, action string, cause error, uid string, opts ...audit.EventOption) {
	if g.auditor == nil {
		return
	}

	opts = append([]audit.EventOption{audit.WithUserID(uid)}, opts...)

	var err error
	if cause != nil {
		err = g.auditor.LogError(ctx, action, cause, opts...)
	} else {
		err = g.auditor.Log(ctx, action, opts...)
	}
	if err != nil {
		g.log.WarnContext(ctx, "failed to record audit event",
			logger.Event(action),
			logger.UserID(uid),
			logger.Error(err),
		)
	}
}
