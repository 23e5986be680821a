package audit

import "errors"

var (
	ErrStorageNotAvailable = errors.New("audit.errors.storage_not_available")
	ErrEventValidation     = errors.New("audit.errors.event_validation_failed")
	ErrStorageFailure      = errors.New("audit.errors.storage_failure")
)
