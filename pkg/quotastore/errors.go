package quotastore

import "errors"

var (
	// ErrStoreUnavailable wraps every backend failure, including timeouts.
	ErrStoreUnavailable = errors.New("quotastore.errors.store_unavailable")
	ErrInvalidKey       = errors.New("quotastore.errors.invalid_key")
)
