package archive

import "errors"

var (
	ErrInvalidKey     = errors.New("archive: invalid key")
	ErrUnknownBackend = errors.New("archive: unknown backend")
	ErrMissingDir     = errors.New("archive: directory is required")
	ErrMissingBucket  = errors.New("archive: bucket and region are required")
	ErrBucketNotFound = errors.New("archive: bucket not found")
	ErrAccessDenied   = errors.New("archive: access denied")
	ErrUnavailable    = errors.New("archive: storage unavailable")
	ErrWriteFailed    = errors.New("archive: write failed")
)
