package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchSender is the subset of *pgxpool.Pool used by PostgresStorage.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const insertEventSQL = `
INSERT INTO audit_logs (id, user_id, action, resource, result, error, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// PostgresStorage writes events to the audit_logs table.
type PostgresStorage struct {
	db BatchSender
}

func NewPostgresStorage(db BatchSender) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	return s.StoreBatch(ctx, []Event{event})
}

// StoreBatch sends all inserts in one round trip. Inserts are idempotent on id.
func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		metadata := []byte("{}")
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("%w: marshal metadata: %w", ErrEventValidation, err)
			}
			metadata = b
		}
		batch.Queue(insertEventSQL, e.ID, e.UserID, e.Action, e.Resource, string(e.Result), e.Error, metadata, e.CreatedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	var errs []error
	for range events {
		if _, err := results.Exec(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := results.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrStorageFailure}, errs...)...)
	}
	return nil
}
