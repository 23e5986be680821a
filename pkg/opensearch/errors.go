package opensearch

import "errors"

var (
	ErrConnectionFailed  = errors.New("opensearch.errors.connection_failed")
	ErrHealthcheckFailed = errors.New("opensearch.errors.healthcheck_failed")
)
