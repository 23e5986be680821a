// Package cache provides a generic, size-bounded LRU cache with per-entry
// expiry. It backs short-lived read-through caches such as entitlement
// lookups, where a stale answer must age out quickly.
//
//	c := cache.NewTTLCache[string, bool](10_000, 30*time.Second)
//	c.Put("user-1", true)
//	ok, found := c.Get("user-1")
package cache
