// Package usage is the entry point for gating metered features.
//
// A Gate combines the quota policy table, a tier resolver and a quota store:
//
//	gate := usage.New(table, resolver, store,
//	    usage.WithLogger(log),
//	    usage.WithAuditor(auditor),
//	    usage.WithFailurePolicy(usage.DegradedAllow),
//	)
//
//	decision, err := gate.CheckAndIncrement(ctx, quota.FeatureAITips, "")
//	if err != nil {
//	    // principal.ErrUnauthenticated or quota.ErrUnknownFeature
//	}
//	if !decision.Allowed {
//	    // show the upgrade prompt
//	}
//
// Premium users are allowed without touching the store. Free users go
// through the store's atomic check-and-increment, so concurrent callers can
// never exceed the limit. When the store is unreachable the configured
// FailurePolicy decides, and the returned status carries Degraded=true.
package usage
