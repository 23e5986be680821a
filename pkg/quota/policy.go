package quota

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// Policy describes how a single feature is metered on the free tier.
type Policy struct {
	Period    Period `json:"period" yaml:"period"`
	FreeLimit int64  `json:"free_limit" yaml:"free_limit"`
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if !p.Period.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, p.Period)
	}
	if p.FreeLimit < 0 {
		return fmt.Errorf("%w: negative free limit %d", ErrInvalidPolicy, p.FreeLimit)
	}
	return nil
}

// Source defines how policies are loaded into a Table.
type Source interface {
	Load(ctx context.Context) (map[FeatureKind]Policy, error)
}

// Table maps (feature, tier) to a limit. It is immutable after construction.
type Table struct {
	policies map[FeatureKind]Policy
}

// NewTable loads policies from src and validates that every feature kind is covered.
func NewTable(ctx context.Context, src Source) (*Table, error) {
	if src == nil {
		return nil, errors.Join(ErrFailedToLoad, errors.New("nil policy source"))
	}

	policies, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoad, err)
	}

	if err := validatePolicies(policies); err != nil {
		return nil, err
	}

	return &Table{policies: maps.Clone(policies)}, nil
}

// MustNewTable is like NewTable but panics on error.
func MustNewTable(ctx context.Context, src Source) *Table {
	t, err := NewTable(ctx, src)
	if err != nil {
		panic(err)
	}
	return t
}

func validatePolicies(policies map[FeatureKind]Policy) error {
	var errs []error
	for _, f := range allFeatures {
		p, ok := policies[f]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: missing policy for %q", ErrInvalidPolicy, f))
			continue
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("feature %q: %w", f, err))
		}
	}
	for f := range policies {
		if !f.Valid() {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownFeature, f))
		}
	}
	return errors.Join(errs...)
}

// PolicyFor returns the policy of a feature.
func (t *Table) PolicyFor(feature FeatureKind) (Policy, error) {
	p, ok := t.policies[feature]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	return p, nil
}

// LimitFor returns the limit of a feature for the given tier,
// or Unlimited for premium and family.
func (t *Table) LimitFor(feature FeatureKind, tier Tier) (int64, error) {
	p, err := t.PolicyFor(feature)
	if err != nil {
		return 0, err
	}
	if tier.IsUnlimited() {
		return Unlimited, nil
	}
	return p.FreeLimit, nil
}

// Features returns the feature kinds covered by the table in a stable order.
func (t *Table) Features() []FeatureKind {
	return AllFeatures()
}
