// Package audit records usage-gating events for later review.
//
// The gate writes an event whenever a user hits a quota
// (ActionUsageLimitReached) or a decision was made without the quota store
// (ActionUsageCheckDegraded). Events go through a Logger to a Storage:
//
//	storage := audit.NewAsyncStorage(audit.NewPostgresStorage(pool), audit.AsyncOptions{})
//	defer storage.Close(ctx)
//
//	auditor := audit.NewLogger(storage, audit.WithUserIDExtractor(principal.UserIDFromContext))
//	_ = auditor.Log(ctx, audit.ActionUsageLimitReached,
//	    audit.WithUserID(userID),
//	    audit.WithResource("ai_tips"),
//	    audit.WithMetadata("limit", 3),
//	)
//
// Storage backends: MemoryStorage, PostgresStorage (audit_logs table) and
// OpenSearchStorage. AsyncStorage batches writes to any BatchStorage in the
// background; when its buffer is full it falls back to a synchronous write.
package audit
