package quota

import "errors"

var (
	ErrUnknownFeature    = errors.New("quota.errors.unknown_feature")
	ErrInvalidPolicy     = errors.New("quota.errors.invalid_policy")
	ErrInvalidPeriod     = errors.New("quota.errors.invalid_period")
	ErrFailedToLoad      = errors.New("quota.errors.failed_to_load_policies")
	ErrPolicyNotFound    = errors.New("quota.errors.policy_document_not_found")
	ErrMalformedDocument = errors.New("quota.errors.malformed_policy_document")
)
