// Package entitlement answers whether a user currently holds an unlimited
// (premium) entitlement according to the billing provider's entitlement
// service.
//
// The capability variant is chosen once at startup:
//
//   - RevenueCat: queries the RevenueCat subscribers REST API
//   - Unsupported: the platform has no entitlement service; always false
//   - Static: a fixed set of entitled users, for development and tests
//
// Any Source may be wrapped with NewCached for a short-lived read-through
// cache of successful answers. Errors are never cached.
package entitlement
