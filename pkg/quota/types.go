package quota

import (
	"slices"
	"strings"
)

// FeatureKind identifies a metered user action.
type FeatureKind string

// Metered features. The set is closed.
const (
	FeatureAITips       FeatureKind = "ai_tips"
	FeatureChatMessages FeatureKind = "chat_messages"
	FeatureMediaUpload  FeatureKind = "media_upload"
)

var allFeatures = []FeatureKind{FeatureAITips, FeatureChatMessages, FeatureMediaUpload}

// AllFeatures returns every known feature kind in a stable order.
func AllFeatures() []FeatureKind {
	return slices.Clone(allFeatures)
}

// ParseFeatureKind converts a raw string into a FeatureKind.
func ParseFeatureKind(s string) (FeatureKind, error) {
	f := FeatureKind(strings.TrimSpace(s))
	if !f.Valid() {
		return "", ErrUnknownFeature
	}
	return f, nil
}

// Valid reports whether f is one of the known feature kinds.
func (f FeatureKind) Valid() bool {
	return slices.Contains(allFeatures, f)
}

func (f FeatureKind) String() string { return string(f) }

// Tier is a subscription tier. Only free and premium are effective tiers;
// family exists in persisted records and behaves as premium.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierFamily  Tier = "family"
)

// ParseTier maps a persisted tier value to a Tier.
// Unrecognized values resolve to free so an unknown tier never over-grants.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPremium:
		return TierPremium
	case TierFamily:
		return TierFamily
	default:
		return TierFree
	}
}

// Effective collapses the tier into one of the two effective tiers.
func (t Tier) Effective() Tier {
	switch t {
	case TierPremium, TierFamily:
		return TierPremium
	default:
		return TierFree
	}
}

// IsUnlimited reports whether the tier has no quota on any feature.
func (t Tier) IsUnlimited() bool {
	return t.Effective() == TierPremium
}

func (t Tier) String() string { return string(t) }

// Unlimited is the limit sentinel for tiers without a quota.
// It is never compared against a count.
const Unlimited int64 = -1

// Status is a snapshot of a user's consumption of one feature.
type Status struct {
	CurrentCount int64 `json:"current_count"`
	Limit        int64 `json:"limit"`
	Remaining    int64 `json:"remaining"`
	IsUnlimited  bool  `json:"is_unlimited"`
	// Degraded marks values produced without consulting the quota store.
	Degraded bool `json:"degraded,omitempty"`
}

// NewStatus builds a bounded status from a count and a non-negative limit.
func NewStatus(count, limit int64) Status {
	return Status{
		CurrentCount: count,
		Limit:        limit,
		Remaining:    max(0, limit-count),
	}
}

// UnlimitedStatus is the status reported for unlimited tiers.
func UnlimitedStatus() Status {
	return Status{
		CurrentCount: 0,
		Limit:        Unlimited,
		Remaining:    Unlimited,
		IsUnlimited:  true,
	}
}

// Decision is the outcome of a check-and-increment call.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Status  Status `json:"status"`
}
