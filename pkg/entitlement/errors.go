package entitlement

import "errors"

var (
	// ErrSourceUnavailable wraps transport and protocol failures of a Source.
	ErrSourceUnavailable = errors.New("entitlement.errors.source_unavailable")
	ErrInvalidConfig     = errors.New("entitlement.errors.invalid_config")
	ErrEmptyPrincipal    = errors.New("entitlement.errors.empty_principal")
)
