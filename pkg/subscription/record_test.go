package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
)

func TestRecordGrants(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name   string
		record *subscription.Record
		want   bool
		tier   quota.Tier
	}{
		{"nil record", nil, false, quota.TierFree},
		{"active without period end", &subscription.Record{Status: subscription.StatusActive, Tier: quota.TierPremium}, true, quota.TierPremium},
		{"trialing in period", &subscription.Record{Status: subscription.StatusTrialing, Tier: quota.TierPremium, CurrentPeriodEnd: &future}, true, quota.TierPremium},
		{"active but period ended", &subscription.Record{Status: subscription.StatusActive, Tier: quota.TierPremium, CurrentPeriodEnd: &past}, false, quota.TierFree},
		{"period ends exactly now", &subscription.Record{Status: subscription.StatusActive, Tier: quota.TierPremium, CurrentPeriodEnd: &now}, false, quota.TierFree},
		{"canceled", &subscription.Record{Status: subscription.StatusCanceled, Tier: quota.TierPremium}, false, quota.TierFree},
		{"past due", &subscription.Record{Status: subscription.StatusPastDue, Tier: quota.TierPremium}, false, quota.TierFree},
		{"family counts as premium", &subscription.Record{Status: subscription.StatusActive, Tier: quota.TierFamily}, true, quota.TierPremium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.record.Grants(now))
			assert.Equal(t, tt.tier, tt.record.EffectiveTier(now))
		})
	}
}

func TestRecordSupersedes(t *testing.T) {
	t.Parallel()

	march1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	march10 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		incoming time.Time
		existing *subscription.Record
		want     bool
	}{
		{name: "no existing record", incoming: march1, want: true},
		{name: "existing without event time", incoming: march1, existing: &subscription.Record{}, want: true},
		{name: "newer event", incoming: march10, existing: &subscription.Record{LastEventAt: march1}, want: true},
		{name: "older event", incoming: march1, existing: &subscription.Record{LastEventAt: march10}, want: false},
		{name: "same event", incoming: march1, existing: &subscription.Record{LastEventAt: march1}, want: false},
		{name: "unordered write over ordered record", existing: &subscription.Record{LastEventAt: march1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &subscription.Record{LastEventAt: tt.incoming}
			assert.Equal(t, tt.want, r.Supersedes(tt.existing))
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, subscription.StatusCanceled, subscription.ParseStatus("cancelled"))
	assert.Equal(t, subscription.StatusCanceled, subscription.ParseStatus(" Canceled "))
	assert.Equal(t, subscription.StatusActive, subscription.ParseStatus("ACTIVE"))
	assert.Equal(t, subscription.Status("weird"), subscription.ParseStatus("weird"))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()
		_, err := store.Get(ctx, "nobody")
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("invalid record", func(t *testing.T) {
		t.Parallel()
		err := store.Save(ctx, &subscription.Record{Status: subscription.StatusActive})
		assert.ErrorIs(t, err, subscription.ErrInvalidRecord)
	})

	t.Run("save then replace keeps created at", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, store.Save(ctx, &subscription.Record{
			UserID: "u1",
			Tier:   quota.TierPremium,
			Status: subscription.StatusActive,
		}))
		first, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, quota.TierPremium, first.Tier)
		assert.False(t, first.CreatedAt.IsZero())

		require.NoError(t, store.Save(ctx, &subscription.Record{
			UserID: "u1",
			Tier:   quota.TierPremium,
			Status: subscription.StatusCanceled,
		}))
		second, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, second.Status)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
	})

	t.Run("stale save keeps newer record", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, store.Save(ctx, &subscription.Record{
			UserID:      "u3",
			Tier:        quota.TierPremium,
			Status:      subscription.StatusCanceled,
			LastEventAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		}))

		err := store.Save(ctx, &subscription.Record{
			UserID:      "u3",
			Tier:        quota.TierPremium,
			Status:      subscription.StatusActive,
			LastEventAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		assert.ErrorIs(t, err, subscription.ErrStaleEvent)

		r, err := store.Get(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, r.Status)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, store.Save(ctx, &subscription.Record{
			UserID: "u2",
			Tier:   quota.TierFamily,
			Status: subscription.StatusActive,
		}))
		r, err := store.Get(ctx, "u2")
		require.NoError(t, err)
		r.Tier = quota.TierFree

		again, err := store.Get(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, quota.TierFamily, again.Tier)
	})
}
