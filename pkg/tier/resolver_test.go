package tier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/usagegate/pkg/entitlement"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
	"github.com/dmitrymomot/usagegate/pkg/tier"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID string) (*subscription.Record, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.(*subscription.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, record *subscription.Record) error {
	return m.Called(ctx, record).Error(0)
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func failing(err error) entitlement.Source {
	return entitlement.SourceFunc(func(context.Context, string) (bool, error) { return false, err })
}

func seeded(t *testing.T, records ...*subscription.Record) *subscription.MemoryStore {
	t.Helper()
	s := subscription.NewMemoryStore()
	for _, r := range records {
		require.NoError(t, s.Save(context.Background(), r))
	}
	return s
}

func TestResolve(t *testing.T) {
	t.Parallel()

	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)
	sourceErr := errors.Join(entitlement.ErrSourceUnavailable, errors.New("network down"))

	tests := []struct {
		name   string
		source entitlement.Source
		store  subscription.Store
		want   quota.Tier
	}{
		{
			name:   "entitlement grants premium",
			source: entitlement.NewStatic("u1"),
			store:  seeded(t),
			want:   quota.TierPremium,
		},
		{
			name:   "entitlement wins over a canceled record",
			source: entitlement.NewStatic("u1"),
			store:  seeded(t, &subscription.Record{UserID: "u1", Tier: quota.TierPremium, Status: subscription.StatusCanceled}),
			want:   quota.TierPremium,
		},
		{
			name:   "no entitlement and active record",
			source: entitlement.Unsupported{},
			store:  seeded(t, &subscription.Record{UserID: "u1", Tier: quota.TierPremium, Status: subscription.StatusActive, CurrentPeriodEnd: &future}),
			want:   quota.TierPremium,
		},
		{
			name:   "family record resolves to premium",
			source: entitlement.Unsupported{},
			store:  seeded(t, &subscription.Record{UserID: "u1", Tier: quota.TierFamily, Status: subscription.StatusActive}),
			want:   quota.TierPremium,
		},
		{
			name:   "expired record is free",
			source: entitlement.Unsupported{},
			store:  seeded(t, &subscription.Record{UserID: "u1", Tier: quota.TierPremium, Status: subscription.StatusActive, CurrentPeriodEnd: &past}),
			want:   quota.TierFree,
		},
		{
			name:   "entitlement error falls back to record",
			source: failing(sourceErr),
			store:  seeded(t, &subscription.Record{UserID: "u1", Tier: quota.TierPremium, Status: subscription.StatusTrialing}),
			want:   quota.TierPremium,
		},
		{
			name:   "entitlement error and no record is free",
			source: failing(sourceErr),
			store:  seeded(t),
			want:   quota.TierFree,
		},
		{
			name:   "nil source and nil store",
			source: nil,
			store:  nil,
			want:   quota.TierFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := tier.New(tt.source, tt.store, tier.WithClock(clock))
			assert.Equal(t, tt.want, r.Resolve(context.Background(), "u1"))
		})
	}
}

func TestResolveStoreFailure(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Get", mock.Anything, "u1").Return(nil, subscription.ErrStoreFailure).Once()

	r := tier.New(failing(entitlement.ErrSourceUnavailable), store)
	assert.Equal(t, quota.TierFree, r.Resolve(context.Background(), "u1"))
	store.AssertExpectations(t)
}

func TestResolveRecoversFromPanics(t *testing.T) {
	t.Parallel()

	source := entitlement.SourceFunc(func(context.Context, string) (bool, error) { panic("boom") })
	store := &MockStore{}
	store.On("Get", mock.Anything, "u1").Run(func(mock.Arguments) { panic("boom") })

	r := tier.New(source, store)
	assert.NotPanics(t, func() {
		assert.Equal(t, quota.TierFree, r.Resolve(context.Background(), "u1"))
	})
}

func TestResolveTimeouts(t *testing.T) {
	t.Parallel()

	slow := entitlement.SourceFunc(func(ctx context.Context, _ string) (bool, error) {
		<-ctx.Done()
		return false, errors.Join(entitlement.ErrSourceUnavailable, ctx.Err())
	})
	store := &MockStore{}
	store.On("Get", mock.Anything, "u1").Return(&subscription.Record{
		UserID: "u1",
		Tier:   quota.TierPremium,
		Status: subscription.StatusActive,
	}, nil)

	r := tier.New(slow, store, tier.WithEntitlementTimeout(10*time.Millisecond), tier.WithClock(clock))

	start := time.Now()
	got := r.Resolve(context.Background(), "u1")
	assert.Equal(t, quota.TierPremium, got)
	assert.Less(t, time.Since(start), time.Second)

	// The record read gets its own deadline, not the one consumed by the entitlement call.
	ctx := store.Calls[0].Arguments.Get(0).(context.Context)
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Greater(t, time.Until(deadline), -time.Second)
}
