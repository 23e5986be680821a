// Package quota defines the vocabulary of feature metering: feature kinds,
// subscription tiers, counting periods and the policy table that maps a
// (feature, tier) pair to a limit.
//
// The table is loaded once from a Source and is immutable afterwards, so it is
// safe for concurrent use without locking.
//
// Key concepts:
//
//   - FeatureKind: one of the metered actions (ai_tips, chat_messages, media_upload)
//   - Tier: the effective subscription tier (free or premium)
//   - Period: the counting window of a feature (daily or monthly, UTC)
//   - Policy: the period and free-tier limit of a single feature
//
// Basic usage:
//
//	table, err := quota.NewTable(ctx, quota.DefaultSource())
//	if err != nil {
//	    return err
//	}
//
//	limit, err := table.LimitFor(quota.FeatureAITips, quota.TierFree) // 3
//
// Policies may also be loaded from a YAML document on disk or in S3:
//
//	features:
//	  ai_tips:       {period: daily,   free_limit: 3}
//	  chat_messages: {period: daily,   free_limit: 10}
//	  media_upload:  {period: monthly, free_limit: 20}
package quota
