package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRevenueCatBaseURL     = "https://api.revenuecat.com"
	DefaultRevenueCatEntitlement = "pro"
)

// RevenueCat queries GET /v1/subscribers/{app_user_id}.
type RevenueCat struct {
	baseURL       string
	apiKey        string
	entitlementID string
	client        *http.Client
	now           func() time.Time
}

// RevenueCatOption configures a RevenueCat source.
type RevenueCatOption func(*RevenueCat)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) RevenueCatOption {
	return func(r *RevenueCat) {
		if u != "" {
			r.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithEntitlementID sets the entitlement identifier that grants premium.
func WithEntitlementID(id string) RevenueCatOption {
	return func(r *RevenueCat) {
		if id != "" {
			r.entitlementID = id
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) RevenueCatOption {
	return func(r *RevenueCat) {
		if c != nil {
			r.client = c
		}
	}
}

// WithClock overrides the time source used to evaluate expiry dates.
func WithClock(now func() time.Time) RevenueCatOption {
	return func(r *RevenueCat) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRevenueCat creates a RevenueCat source authenticated with a secret API key.
func NewRevenueCat(apiKey string, opts ...RevenueCatOption) (*RevenueCat, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: revenuecat api key is required", ErrInvalidConfig)
	}

	r := &RevenueCat{
		baseURL:       DefaultRevenueCatBaseURL,
		apiKey:        apiKey,
		entitlementID: DefaultRevenueCatEntitlement,
		client:        &http.Client{Timeout: 10 * time.Second},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]rcEntitlement `json:"entitlements"`
	} `json:"subscriber"`
}

type rcEntitlement struct {
	ExpiresDate            *time.Time `json:"expires_date"`
	GracePeriodExpiresDate *time.Time `json:"grace_period_expires_date"`
	ProductIdentifier      string     `json:"product_identifier"`
}

// active reports whether the entitlement is in force at now.
// A null expiry is a lifetime entitlement.
func (e rcEntitlement) active(now time.Time) bool {
	if e.ExpiresDate == nil {
		return true
	}
	if now.Before(*e.ExpiresDate) {
		return true
	}
	return e.GracePeriodExpiresDate != nil && now.Before(*e.GracePeriodExpiresDate)
}

// HasUnlimitedEntitlement implements Source. Unknown subscribers have no entitlement.
func (r *RevenueCat) HasUnlimitedEntitlement(ctx context.Context, principal string) (bool, error) {
	if strings.TrimSpace(principal) == "" {
		return false, ErrEmptyPrincipal
	}

	endpoint := r.baseURL + "/v1/subscribers/" + url.PathEscape(principal)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return false, fmt.Errorf("%w: revenuecat responded %s", ErrSourceUnavailable, resp.Status)
	}

	var body subscriberResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: decode subscriber: %w", ErrSourceUnavailable, err)
	}

	ent, ok := body.Subscriber.Entitlements[r.entitlementID]
	if !ok {
		return false, nil
	}
	return ent.active(r.now()), nil
}
