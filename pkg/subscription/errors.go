package subscription

import "errors"

var (
	ErrNotFound           = errors.New("subscription.errors.not_found")
	ErrInvalidRecord      = errors.New("subscription.errors.invalid_record")
	ErrStoreFailure       = errors.New("subscription.errors.store_failure")
	ErrMissingSecret      = errors.New("subscription.errors.missing_webhook_secret")
	ErrInvalidSignature   = errors.New("subscription.errors.invalid_signature")
	ErrMalformedWebhook   = errors.New("subscription.errors.malformed_webhook")
	ErrUnknownPrice       = errors.New("subscription.errors.unknown_price")
	ErrMissingUserID      = errors.New("subscription.errors.missing_user_id")
	ErrEventNotApplicable = errors.New("subscription.errors.event_not_applicable")
	ErrStaleEvent         = errors.New("subscription.errors.stale_event")
)
