package entitlement

import (
	"context"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/cache"
)

// Cached is a read-through cache in front of another Source.
// Granted and denied answers live in separate caches so a purchase made
// outside a synced webhook is picked up after the shorter denied TTL.
type Cached struct {
	next    Source
	granted *cache.TTLCache[string, bool]
	denied  *cache.TTLCache[string, bool]
}

// NewCached wraps next with caches of up to size answers each. Granted
// answers are kept for ttl and denied ones for deniedTTL. A non-positive
// deniedTTL disables caching of denied answers.
func NewCached(next Source, size int, ttl, deniedTTL time.Duration, opts ...cache.Option) *Cached {
	c := &Cached{
		next:    next,
		granted: cache.NewTTLCache[string, bool](size, ttl, opts...),
	}
	if deniedTTL > 0 {
		c.denied = cache.NewTTLCache[string, bool](size, deniedTTL, opts...)
	}
	return c
}

func (c *Cached) HasUnlimitedEntitlement(ctx context.Context, principal string) (bool, error) {
	if _, ok := c.granted.Get(principal); ok {
		return true, nil
	}
	if c.denied != nil {
		if _, ok := c.denied.Get(principal); ok {
			return false, nil
		}
	}

	v, err := c.next.HasUnlimitedEntitlement(ctx, principal)
	if err != nil {
		return false, err
	}

	if v {
		c.granted.Put(principal, true)
		if c.denied != nil {
			c.denied.Remove(principal)
		}
	} else {
		c.granted.Remove(principal)
		if c.denied != nil {
			c.denied.Put(principal, false)
		}
	}
	return v, nil
}

// Invalidate drops the cached answer for principal, e.g. after a purchase webhook.
func (c *Cached) Invalidate(principal string) {
	c.granted.Remove(principal)
	if c.denied != nil {
		c.denied.Remove(principal)
	}
}
