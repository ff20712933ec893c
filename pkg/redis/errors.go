package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: webhook dedup store url is empty")
	ErrFailedToParseRedisConnString = errors.New("redis: invalid webhook dedup store url")
	ErrRedisNotReady                = errors.New("redis: webhook dedup store did not answer before the connect deadline")
	ErrHealthcheckFailed            = errors.New("redis: webhook dedup store is not ready")
)
