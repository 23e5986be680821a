package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/config"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/quotastore"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
)

func loadPolicies(ctx context.Context, cfg Config) (*quota.Table, error) {
	var src quota.Source
	switch strings.ToLower(cfg.PolicySource) {
	case "", policyBuiltin:
		src = quota.DefaultSource()
	case policyFile:
		src = quota.NewFileSource(cfg.PolicyFile)
	case policyS3:
		var s3cfg quota.S3Config
		if err := config.Load(&s3cfg); err != nil {
			return nil, err
		}
		s, err := quota.NewS3SourceFromConfig(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		src = s
	default:
		return nil, fmt.Errorf("unknown POLICY_SOURCE %q", cfg.PolicySource)
	}
	return quota.NewTable(ctx, src)
}

func buildQuotaStore(ctx context.Context, cfg Config, table *quota.Table, deps *infra) (quotastore.Store, error) {
	var backend quotastore.Backend

	switch strings.ToLower(cfg.QuotaStore) {
	case "", backendMemory:
		backend = quotastore.NewMemoryBackend(time.Now)
	case backendRedis:
		rdb, err := deps.redis(ctx)
		if err != nil {
			return nil, err
		}
		backend = quotastore.NewRedisBackend(rdb, quotastore.WithRedisPrefix(cfg.RedisKeyPrefix))
	case backendPostgres:
		pool, err := deps.postgres(ctx)
		if err != nil {
			return nil, err
		}
		pgBackend := quotastore.NewPostgresBackend(pool)
		go purgeExpiredCounters(ctx, pgBackend, cfg.PurgeInterval, deps.log)
		backend = pgBackend
	case backendMongo:
		db, err := deps.mongo(ctx)
		if err != nil {
			return nil, err
		}
		mb := quotastore.NewMongoBackend(db.Collection(quotastore.DefaultMongoCollection))
		if err := mb.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		backend = mb
	default:
		return nil, fmt.Errorf("unknown QUOTA_STORE %q", cfg.QuotaStore)
	}

	return quotastore.New(table, backend), nil
}

// purgeExpiredCounters deletes counters of finished periods. Postgres has no
// native key expiry.
func purgeExpiredCounters(ctx context.Context, b *quotastore.PostgresBackend, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.PurgeExpired(ctx, time.Now())
			if err != nil {
				log.WarnContext(ctx, "failed to purge expired counters", logger.Component("janitor"), logger.Error(err))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "purged expired counters", logger.Component("janitor"), logger.Count(n))
			}
		}
	}
}

func buildSubscriptionStore(ctx context.Context, cfg Config, deps *infra) (subscription.Store, error) {
	switch strings.ToLower(cfg.SubscriptionStore) {
	case "", backendMemory:
		return subscription.NewMemoryStore(), nil
	case backendPostgres:
		pool, err := deps.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return subscription.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown SUBSCRIPTION_STORE %q", cfg.SubscriptionStore)
	}
}

// buildAuditStorage returns nil for AUDIT_STORE=none. Network backends are
// wrapped in an AsyncStorage that the caller must close.
func buildAuditStorage(ctx context.Context, cfg Config, deps *infra) (audit.Storage, *audit.AsyncStorage, error) {
	var batch audit.BatchStorage

	switch strings.ToLower(cfg.AuditStore) {
	case "", backendNone:
		return nil, nil, nil
	case backendMemory:
		return audit.NewMemoryStorage(), nil, nil
	case backendPostgres:
		pool, err := deps.postgres(ctx)
		if err != nil {
			return nil, nil, err
		}
		batch = audit.NewPostgresStorage(pool)
	case backendOpenSearch:
		client, index, err := deps.opensearch(ctx)
		if err != nil {
			return nil, nil, err
		}
		batch = audit.NewOpenSearchStorage(client, index)
	default:
		return nil, nil, fmt.Errorf("unknown AUDIT_STORE %q", cfg.AuditStore)
	}

	async := audit.NewAsyncStorage(batch, audit.AsyncOptions{Logger: deps.log})
	return async, async, nil
}
