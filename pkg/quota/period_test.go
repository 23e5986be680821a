package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/usagegate/pkg/quota"
)

func TestBucketFor(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)

	daily, err := quota.BucketFor(quota.PeriodDaily, ts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", daily)

	monthly, err := quota.BucketFor(quota.PeriodMonthly, ts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", monthly)

	_, err = quota.BucketFor("weekly", ts)
	assert.ErrorIs(t, err, quota.ErrInvalidPeriod)
}

func TestBucketForUsesUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	// 01:30 local on the 15th is 22:30 UTC on the 14th.
	ts := time.Date(2025, 3, 15, 1, 30, 0, 0, loc)

	daily, err := quota.BucketFor(quota.PeriodDaily, ts)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", daily)
}

func TestBucketEnd(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC)

	end, err := quota.BucketEnd(quota.PeriodDaily, ts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	end, err = quota.BucketEnd(quota.PeriodMonthly, ts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	start, err := quota.BucketStart(quota.PeriodMonthly, ts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
}
