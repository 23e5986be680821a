// Package quotastore owns the per-user, per-feature, per-period usage counters
// and enforces quota limits atomically.
//
// A Meter implements Store on top of a Backend. The meter derives the period
// bucket and the limit from the policy table; the backend provides a single
// linearizable "increment if below limit" primitive per counter key:
//
//   - MemoryBackend: mutex-guarded map, for tests and single-process deployments
//   - RedisBackend: Lua script executing GET, compare, INCR and EXPIREAT atomically
//   - PostgresBackend: one INSERT ... ON CONFLICT DO UPDATE ... WHERE statement
//   - MongoBackend: FindOneAndUpdate with a $lt guard and upsert
//
// Denied calls never mutate a counter. Unlimited tiers never touch the backend.
//
// Usage:
//
//	meter := quotastore.New(table, quotastore.NewRedisBackend(client))
//	res, err := meter.CheckAndIncrement(ctx, userID, quota.FeatureAITips, quota.TierFree)
//	if err != nil {
//	    // errors.Is(err, quotastore.ErrStoreUnavailable)
//	}
package quotastore
