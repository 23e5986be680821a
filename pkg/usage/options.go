package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/environment"
	"github.com/dmitrymomot/usagegate/pkg/metrics"
)

// DefaultStoreTimeout bounds every quota store call.
const DefaultStoreTimeout = 5 * time.Second

// FailurePolicy decides what CheckAndIncrement returns when the quota store
// cannot be reached.
type FailurePolicy string

const (
	// DegradedAllow lets the action through and flags the status as degraded.
	DegradedAllow FailurePolicy = "degraded_allow"
	// FailClosed denies the action.
	FailClosed FailurePolicy = "fail_closed"
)

// ParseFailurePolicy accepts "degraded_allow" and "fail_closed".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DegradedAllow, FailClosed:
		return p, nil
	case "":
		return DegradedAllow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFailurePolicy, s)
	}
}

// Auditor receives audit events. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(g *Gate) {
		g.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithFailurePolicy sets the behavior on quota store failure. Default DegradedAllow.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(g *Gate) {
		if p == DegradedAllow || p == FailClosed {
			g.policy = p
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.storeTimeout = d
		}
	}
}

// WithEnvironment sets the deployment environment. ResetUsage is only
// permitted in development. Default production.
func WithEnvironment(env environment.Environment) Option {
	return func(g *Gate) {
		g.env = environment.Parse(string(env))
	}
}
