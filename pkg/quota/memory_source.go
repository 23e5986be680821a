package quota

import (
	"context"
	"maps"
)

// DefaultPolicies are the built-in free-tier quotas.
var DefaultPolicies = map[FeatureKind]Policy{
	FeatureAITips:       {Period: PeriodDaily, FreeLimit: 3},
	FeatureChatMessages: {Period: PeriodDaily, FreeLimit: 10},
	FeatureMediaUpload:  {Period: PeriodMonthly, FreeLimit: 20},
}

type inMemSource struct {
	policies map[FeatureKind]Policy
}

// NewInMemSource returns a Source backed by a copy of the given policies.
func NewInMemSource(policies map[FeatureKind]Policy) Source {
	return &inMemSource{policies: maps.Clone(policies)}
}

// DefaultSource returns a Source with DefaultPolicies.
func DefaultSource() Source {
	return NewInMemSource(DefaultPolicies)
}

// Load returns a copy of the stored policies.
func (s *inMemSource) Load(_ context.Context) (map[FeatureKind]Policy, error) {
	return maps.Clone(s.policies), nil
}
