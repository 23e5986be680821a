package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("mongo.errors.failed_to_connect")
	ErrHealthcheckFailed      = errors.New("mongo.errors.healthcheck_failed")
)
