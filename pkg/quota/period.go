package quota

import (
	"fmt"
	"time"
)

// Period is the counting window of a feature. Boundaries are UTC.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

const (
	dailyLayout   = "2006-01-02"
	monthlyLayout = "2006-01"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodMonthly
}

// BucketFor returns the period bucket label containing t,
// e.g. "2025-03-14" for daily and "2025-03" for monthly.
func BucketFor(p Period, t time.Time) (string, error) {
	t = t.UTC()
	switch p {
	case PeriodDaily:
		return t.Format(dailyLayout), nil
	case PeriodMonthly:
		return t.Format(monthlyLayout), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
}

// BucketStart returns the inclusive UTC start of the bucket containing t.
func BucketStart(p Period, t time.Time) (time.Time, error) {
	t = t.UTC()
	switch p {
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
}

// BucketEnd returns the exclusive UTC end of the bucket containing t.
func BucketEnd(p Period, t time.Time) (time.Time, error) {
	start, err := BucketStart(p, t)
	if err != nil {
		return time.Time{}, err
	}
	if p == PeriodDaily {
		return start.AddDate(0, 0, 1), nil
	}
	return start.AddDate(0, 1, 0), nil
}
