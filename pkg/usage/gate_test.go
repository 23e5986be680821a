package usage_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/entitlement"
	"github.com/dmitrymomot/usagegate/pkg/environment"
	"github.com/dmitrymomot/usagegate/pkg/principal"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/quotastore"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
	"github.com/dmitrymomot/usagegate/pkg/tier"
	"github.com/dmitrymomot/usagegate/pkg/usage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fixedTier resolves every user to the same tier and counts calls.
type fixedTier struct {
	tier  quota.Tier
	calls atomic.Int64
}

func (f *fixedTier) Resolve(context.Context, string) quota.Tier {
	f.calls.Add(1)
	return f.tier
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CheckAndIncrement(ctx context.Context, userID string, feature quota.FeatureKind, t quota.Tier) (quotastore.Result, error) {
	args := m.Called(ctx, userID, feature, t)
	return args.Get(0).(quotastore.Result), args.Error(1)
}

func (m *MockStore) Status(ctx context.Context, userID string, feature quota.FeatureKind, t quota.Tier) (quotastore.Result, error) {
	args := m.Called(ctx, userID, feature, t)
	return args.Get(0).(quotastore.Result), args.Error(1)
}

func (m *MockStore) Reset(ctx context.Context, userID string, feature quota.FeatureKind) error {
	return m.Called(ctx, userID, feature).Error(0)
}

var march = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func defaultTable(t *testing.T) *quota.Table {
	t.Helper()
	table, err := quota.NewTable(context.Background(), quota.DefaultSource())
	require.NoError(t, err)
	return table
}

func memoryGate(t *testing.T, clock *fakeClock, resolver usage.TierResolver, opts ...usage.Option) *usage.Gate {
	t.Helper()
	table := defaultTable(t)
	store := quotastore.New(table, quotastore.NewMemoryBackend(clock.Now), quotastore.WithClock(clock.Now))
	return usage.New(table, resolver, store, opts...)
}

func TestCheckAndIncrement_AITipsScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree})

	for i := int64(1); i <= 3; i++ {
		d, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Status.CurrentCount)
		assert.Equal(t, int64(3), d.Status.Limit)
		assert.Equal(t, 3-i, d.Status.Remaining)
		assert.False(t, d.Status.IsUnlimited)
	}

	d, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
	require.NoError(t, err)
	assert.Equal(t, quota.Decision{
		Allowed: false,
		Status:  quota.Status{CurrentCount: 3, Limit: 3, Remaining: 0},
	}, d)

	// Denied calls do not move the counter.
	s, err := gate.Status(ctx, quota.FeatureAITips, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.CurrentCount)
}

func TestCheckAndIncrement_MediaUploadMonthlyRollover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: march}
	gate := memoryGate(t, clock, &fixedTier{tier: quota.TierFree})

	for i := range 20 {
		clock.Set(march.Add(time.Duration(i) * time.Hour))
		d, err := gate.CheckAndIncrement(ctx, quota.FeatureMediaUpload, "u1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := gate.CheckAndIncrement(ctx, quota.FeatureMediaUpload, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(20), d.Status.CurrentCount)

	clock.Set(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	d, err = gate.CheckAndIncrement(ctx, quota.FeatureMediaUpload, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Status.CurrentCount)
	assert.Equal(t, int64(19), d.Status.Remaining)
}

func TestCheckAndIncrement_DailyRollover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)}
	gate := memoryGate(t, clock, &fixedTier{tier: quota.TierFree})

	for range 3 {
		_, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
		require.NoError(t, err)
	}
	d, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	clock.Set(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s, err := gate.Status(ctx, quota.FeatureAITips, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.CurrentCount)
	assert.Equal(t, int64(3), s.Remaining)
}

func TestCheckAndIncrement_PremiumSkipsStore(t *testing.T) {
	t.Parallel()

	for _, tr := range []quota.Tier{quota.TierPremium, quota.TierFamily} {
		t.Run(string(tr), func(t *testing.T) {
			t.Parallel()

			store := &MockStore{}
			gate := usage.New(defaultTable(t), &fixedTier{tier: tr}, store)

			for range 50 {
				d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureChatMessages, "u1")
				require.NoError(t, err)
				assert.True(t, d.Allowed)
				assert.Equal(t, quota.UnlimitedStatus(), d.Status)
			}

			s, err := gate.Status(context.Background(), quota.FeatureChatMessages, "u1")
			require.NoError(t, err)
			assert.True(t, s.IsUnlimited)
			assert.Equal(t, quota.Unlimited, s.Limit)

			store.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCheckAndIncrement_Concurrent(t *testing.T) {
	t.Parallel()

	const callers = 64

	gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree})

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		start   = make(chan struct{})
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureChatMessages, "u1")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())

	s, err := gate.Status(context.Background(), quota.FeatureChatMessages, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.CurrentCount)
}

func TestStatus_IsReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree})

	_, err := gate.CheckAndIncrement(ctx, quota.FeatureChatMessages, "u1")
	require.NoError(t, err)

	first, err := gate.Status(ctx, quota.FeatureChatMessages, "u1")
	require.NoError(t, err)
	second, err := gate.Status(ctx, quota.FeatureChatMessages, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, quota.Status{CurrentCount: 1, Limit: 10, Remaining: 9}, first)
}

func TestGate_EntitlementFailureWithoutRecordIsFree(t *testing.T) {
	t.Parallel()

	source := entitlement.SourceFunc(func(context.Context, string) (bool, error) {
		return false, entitlement.ErrSourceUnavailable
	})
	resolver := tier.New(source, subscription.NewMemoryStore())
	gate := memoryGate(t, &fakeClock{now: march}, resolver)

	d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.Status.IsUnlimited)
	assert.Equal(t, int64(3), d.Status.Limit)
}

func TestGate_UnknownFeatureFailsBeforeIO(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	resolver := &fixedTier{tier: quota.TierFree}
	gate := usage.New(defaultTable(t), resolver, store)

	_, err := gate.CheckAndIncrement(context.Background(), quota.FeatureKind("video"), "u1")
	assert.ErrorIs(t, err, quota.ErrUnknownFeature)

	_, err = gate.Status(context.Background(), quota.FeatureKind("video"), "u1")
	assert.ErrorIs(t, err, quota.ErrUnknownFeature)

	assert.Zero(t, resolver.calls.Load())
	store.AssertExpectations(t)
}

func TestGate_Principal(t *testing.T) {
	t.Parallel()

	gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree})

	_, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "")
	assert.ErrorIs(t, err, principal.ErrUnauthenticated)

	_, err = gate.AllStatus(context.Background(), "  ")
	assert.ErrorIs(t, err, principal.ErrUnauthenticated)

	ctx := principal.WithUserID(context.Background(), "ctx-user")
	d, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Status.CurrentCount)

	// The explicit id wins over the context, so ctx-user is untouched here.
	_, err = gate.CheckAndIncrement(ctx, quota.FeatureAITips, "other")
	require.NoError(t, err)
	s, err := gate.Status(ctx, quota.FeatureAITips, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.CurrentCount)
}

func TestGate_StoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.Join(quotastore.ErrStoreUnavailable, errors.New("connection refused"))

	t.Run("degraded allow", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("CheckAndIncrement", mock.Anything, "u1", quota.FeatureAITips, quota.TierFree).Return(quotastore.Result{}, storeErr)

		storage := audit.NewMemoryStorage()
		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store,
			usage.WithAuditor(audit.NewLogger(storage)),
		)

		d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.Decision{
			Allowed: true,
			Status:  quota.Status{CurrentCount: 0, Limit: 3, Remaining: 3, Degraded: true},
		}, d)

		events := storage.Events(audit.ActionUsageCheckDegraded)
		require.Len(t, events, 1)
		assert.Equal(t, "u1", events[0].UserID)
		assert.Equal(t, audit.ResultError, events[0].Result)
		assert.Equal(t, "ai_tips", events[0].Resource)
	})

	t.Run("fail closed", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("CheckAndIncrement", mock.Anything, "u1", quota.FeatureAITips, quota.TierFree).Return(quotastore.Result{}, storeErr)

		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store,
			usage.WithFailurePolicy(usage.FailClosed),
		)

		d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.Decision{
			Allowed: false,
			Status:  quota.Status{CurrentCount: 0, Limit: 3, Remaining: 0, Degraded: true},
		}, d)
	})

	t.Run("timeout counts as failure", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("CheckAndIncrement", mock.Anything, "u1", quota.FeatureAITips, quota.TierFree).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(quotastore.Result{}, storeErr)

		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store,
			usage.WithStoreTimeout(20*time.Millisecond),
		)

		start := time.Now()
		d, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Status.Degraded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("status fails open", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("Status", mock.Anything, "u1", quota.FeatureChatMessages, quota.TierFree).Return(quotastore.Result{}, storeErr)

		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store,
			usage.WithFailurePolicy(usage.FailClosed),
		)

		s, err := gate.Status(context.Background(), quota.FeatureChatMessages, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.Status{CurrentCount: 0, Limit: 10, Remaining: 10, Degraded: true}, s)
	})
}

func TestGate_LimitReachedIsAudited(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree},
		usage.WithAuditor(audit.NewLogger(storage)),
	)

	for range 4 {
		_, err := gate.CheckAndIncrement(context.Background(), quota.FeatureAITips, "u1")
		require.NoError(t, err)
	}

	events := storage.Events(audit.ActionUsageLimitReached)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "ai_tips", events[0].Resource)
	assert.Equal(t, int64(3), events[0].Metadata["limit"])
	assert.Equal(t, "free", events[0].Metadata["tier"])
}

func TestGate_AllStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("free", func(t *testing.T) {
		t.Parallel()

		resolver := &fixedTier{tier: quota.TierFree}
		gate := memoryGate(t, &fakeClock{now: march}, resolver)

		_, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
		require.NoError(t, err)
		resolver.calls.Store(0)

		all, err := gate.AllStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, map[quota.FeatureKind]quota.Status{
			quota.FeatureAITips:       {CurrentCount: 1, Limit: 3, Remaining: 2},
			quota.FeatureChatMessages: {CurrentCount: 0, Limit: 10, Remaining: 10},
			quota.FeatureMediaUpload:  {CurrentCount: 0, Limit: 20, Remaining: 20},
		}, all)
		assert.Equal(t, int64(1), resolver.calls.Load())
	})

	t.Run("premium", func(t *testing.T) {
		t.Parallel()

		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierPremium}, &MockStore{})

		all, err := gate.AllStatus(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, all, 3)
		for _, s := range all {
			assert.True(t, s.IsUnlimited)
		}
	})
}

func TestGate_ResetUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("not allowed outside development", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		for _, env := range []environment.Environment{"", environment.Production, environment.Staging} {
			opts := []usage.Option{}
			if env != "" {
				opts = append(opts, usage.WithEnvironment(env))
			}
			gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store, opts...)
			assert.ErrorIs(t, gate.ResetUsage(ctx, quota.FeatureAITips, "u1"), usage.ErrResetNotAllowed)
		}
		store.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("development clears the counter", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		gate := memoryGate(t, &fakeClock{now: march}, &fixedTier{tier: quota.TierFree},
			usage.WithEnvironment(environment.Parse("dev")),
			usage.WithAuditor(audit.NewLogger(storage)),
		)

		for range 3 {
			_, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
			require.NoError(t, err)
		}
		require.NoError(t, gate.ResetUsage(ctx, quota.FeatureAITips, "u1"))

		d, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(1), d.Status.CurrentCount)
		assert.Len(t, storage.Events(audit.ActionUsageReset), 1)
	})

	t.Run("store error surfaces", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("Reset", mock.Anything, "u1", quota.FeatureAITips).Return(quotastore.ErrStoreUnavailable)
		gate := usage.New(defaultTable(t), &fixedTier{tier: quota.TierFree}, store,
			usage.WithEnvironment(environment.Development),
		)

		assert.ErrorIs(t, gate.ResetUsage(ctx, quota.FeatureAITips, "u1"), quotastore.ErrStoreUnavailable)
	})
}

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()

	p, err := usage.ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, usage.DegradedAllow, p)

	p, err = usage.ParseFailurePolicy(" FAIL_CLOSED ")
	require.NoError(t, err)
	assert.Equal(t, usage.FailClosed, p)

	_, err = usage.ParseFailurePolicy("open")
	assert.ErrorIs(t, err, usage.ErrInvalidFailurePolicy)
}

func TestNewPanicsOnMissingDependencies(t *testing.T) {
	t.Parallel()

	table := defaultTable(t)
	assert.Panics(t, func() { usage.New(nil, &fixedTier{}, &MockStore{}) })
	assert.Panics(t, func() { usage.New(table, nil, &MockStore{}) })
	assert.Panics(t, func() { usage.New(table, &fixedTier{}, nil) })
}
