package entitlement

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderNone       = "none"
	ProviderStatic     = "static"
	ProviderRevenueCat = "revenuecat"
)

// Config selects and configures the entitlement source.
type Config struct {
	Provider       string        `env:"ENTITLEMENT_PROVIDER" envDefault:"none"`
	StaticUsers    []string      `env:"ENTITLEMENT_STATIC_USERS" envSeparator:","`
	RevenueCatKey  string        `env:"REVENUECAT_API_KEY"`
	RevenueCatURL  string        `env:"REVENUECAT_BASE_URL" envDefault:"https://api.revenuecat.com"`
	EntitlementID  string        `env:"REVENUECAT_ENTITLEMENT_ID" envDefault:"pro"`
	RequestTimeout time.Duration `env:"REVENUECAT_REQUEST_TIMEOUT" envDefault:"5s"`
	CacheTTL       time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"30s"`
	DeniedCacheTTL time.Duration `env:"ENTITLEMENT_DENIED_CACHE_TTL" envDefault:"5s"`
	CacheSize      int           `env:"ENTITLEMENT_CACHE_SIZE" envDefault:"10000"`
}

// New builds the Source described by cfg. A positive CacheTTL wraps it in a
// cache; denied answers are kept only for DeniedCacheTTL.
func New(cfg Config, opts ...RevenueCatOption) (Source, error) {
	var src Source

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return Unsupported{}, nil
	case ProviderStatic:
		src = NewStatic(cfg.StaticUsers...)
	case ProviderRevenueCat:
		rcOpts := []RevenueCatOption{
			WithBaseURL(cfg.RevenueCatURL),
			WithEntitlementID(cfg.EntitlementID),
		}
		if cfg.RequestTimeout > 0 {
			rcOpts = append(rcOpts, WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
		}
		rcOpts = append(rcOpts, opts...)
		rc, err := NewRevenueCat(cfg.RevenueCatKey, rcOpts...)
		if err != nil {
			return nil, err
		}
		src = rc
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	if cfg.CacheTTL > 0 && cfg.CacheSize > 0 {
		return NewCached(src, cfg.CacheSize, cfg.CacheTTL, cfg.DeniedCacheTTL), nil
	}
	return src, nil
}
