package entitlement

import (
	"context"
	"strings"
)

// Source reports whether a principal holds the unlimited entitlement.
type Source interface {
	HasUnlimitedEntitlement(ctx context.Context, principal string) (bool, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, principal string) (bool, error)

func (f SourceFunc) HasUnlimitedEntitlement(ctx context.Context, principal string) (bool, error) {
	return f(ctx, principal)
}

// Unsupported is the Source for platforms without an entitlement service.
type Unsupported struct{}

func (Unsupported) HasUnlimitedEntitlement(context.Context, string) (bool, error) {
	return false, nil
}

// Static grants the entitlement to a fixed set of principals.
type Static struct {
	entitled map[string]struct{}
}

// NewStatic returns a Static source for the given principals.
func NewStatic(principals ...string) *Static {
	s := &Static{entitled: make(map[string]struct{}, len(principals))}
	for _, p := range principals {
		if p = strings.TrimSpace(p); p != "" {
			s.entitled[p] = struct{}{}
		}
	}
	return s
}

func (s *Static) HasUnlimitedEntitlement(_ context.Context, principal string) (bool, error) {
	_, ok := s.entitled[principal]
	return ok, nil
}
