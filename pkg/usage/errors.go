package usage

import "errors"

var (
	ErrResetNotAllowed      = errors.New("usage.errors.reset_not_allowed")
	ErrInvalidFailurePolicy = errors.New("usage.errors.invalid_failure_policy")
)
