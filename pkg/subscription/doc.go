// Package subscription holds the backend's persisted subscription records,
// the second source of truth consulted when resolving a user's tier.
//
// A Record grants its tier only while its status is active or trialing and
// its current billing period has not ended. Records are stored by a Store
// (in memory or in the Postgres subscriptions table) and kept in sync with
// the billing provider by PaddleSyncer, which verifies webhook signatures
// with the Paddle SDK and maps price IDs to tiers:
//
//	syncer, err := subscription.NewPaddleSyncer(subscription.PaddleConfig{
//	    WebhookSecret: secret,
//	    PriceTiers:    map[string]string{"pri_premium": "premium", "pri_family": "family"},
//	}, store)
//
//	record, err := syncer.HandleRequest(r)
package subscription
