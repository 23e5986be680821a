package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/usagegate/pkg/pg"
	"github.com/dmitrymomot/usagegate/pkg/quota"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const selectRecordSQL = `
SELECT user_id, tier, status, provider, provider_sub_id, current_period_end, last_event_at, created_at, updated_at
FROM subscriptions WHERE user_id = $1`

// upsertRecordSQL only replaces a row with a strictly newer event; a skipped
// update affects no rows.
const upsertRecordSQL = `
INSERT INTO subscriptions (user_id, tier, status, provider, provider_sub_id, current_period_end, last_event_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (user_id) DO UPDATE
SET tier = EXCLUDED.tier,
    status = EXCLUDED.status,
    provider = EXCLUDED.provider,
    provider_sub_id = EXCLUDED.provider_sub_id,
    current_period_end = EXCLUDED.current_period_end,
    last_event_at = EXCLUDED.last_event_at,
    updated_at = now()
WHERE subscriptions.last_event_at IS NULL
   OR subscriptions.last_event_at < EXCLUDED.last_event_at`

// PostgresStore keeps records in the subscriptions table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Record, error) {
	var (
		r         Record
		tier      string
		status    string
		periodEnd *time.Time
		lastEvent *time.Time
	)
	err := s.db.QueryRow(ctx, selectRecordSQL, userID).Scan(
		&r.UserID, &tier, &status, &r.Provider, &r.ProviderSubID, &periodEnd, &lastEvent, &r.CreatedAt, &r.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrStoreFailure, userID, err)
	}

	r.Tier = quota.ParseTier(tier)
	r.Status = ParseStatus(status)
	r.CurrentPeriodEnd = periodEnd
	if lastEvent != nil {
		r.LastEventAt = lastEvent.UTC()
	}
	return &r, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	var lastEvent *time.Time
	if !record.LastEventAt.IsZero() {
		t := record.LastEventAt.UTC()
		lastEvent = &t
	}

	tag, err := s.db.Exec(ctx, upsertRecordSQL,
		record.UserID,
		string(record.Tier),
		string(record.Status),
		record.Provider,
		record.ProviderSubID,
		record.CurrentPeriodEnd,
		lastEvent,
	)
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStoreFailure, record.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleEvent
	}
	return nil
}
