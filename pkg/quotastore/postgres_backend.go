package quotastore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/usagegate/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by the Postgres backends.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// The WHERE clause on the conflict branch makes compare and increment a single
// row-locked step; a denied call updates nothing and returns no row.
const incrementBelowSQL = `
INSERT INTO usage_counters (user_id, feature_type, period_bucket, current_count, expires_at, updated_at)
VALUES ($1, $2, $3, 1, $5, now())
ON CONFLICT (user_id, feature_type, period_bucket) DO UPDATE
SET current_count = usage_counters.current_count + 1,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
WHERE usage_counters.current_count < $4
RETURNING current_count`

const selectCountSQL = `
SELECT current_count FROM usage_counters
WHERE user_id = $1 AND feature_type = $2 AND period_bucket = $3`

const deleteCountSQL = `
DELETE FROM usage_counters
WHERE user_id = $1 AND feature_type = $2 AND period_bucket = $3`

const deleteExpiredSQL = `DELETE FROM usage_counters WHERE expires_at <= $1`

// PostgresBackend stores counters in the usage_counters table.
type PostgresBackend struct {
	db DB
}

// NewPostgresBackend creates a Postgres backed counter store.
func NewPostgresBackend(db DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) IncrementBelow(ctx context.Context, key Key, limit int64, expireAt time.Time) (int64, bool, error) {
	var count int64
	err := b.db.QueryRow(ctx, incrementBelowSQL,
		key.UserID, string(key.Feature), key.Bucket, limit, expireAt.UTC(),
	).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return 0, false, fmt.Errorf("postgres increment %s: %w", key, err)
	}

	count, err = b.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return count, false, nil
}

func (b *PostgresBackend) Get(ctx context.Context, key Key) (int64, error) {
	var count int64
	err := b.db.QueryRow(ctx, selectCountSQL, key.UserID, string(key.Feature), key.Bucket).Scan(&count)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return count, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key Key) error {
	if _, err := b.db.Exec(ctx, deleteCountSQL, key.UserID, string(key.Feature), key.Bucket); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes counters whose buckets ended before now.
func (b *PostgresBackend) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := b.db.Exec(ctx, deleteExpiredSQL, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres purge expired counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
