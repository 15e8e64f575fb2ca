package config

import "errors"

// Validation errors returned (wrapped with the offending key) by
// Config.Validate. Use errors.Is to test for them.
var (
	ErrConfigNotFound     = errors.New("configuration file not found")
	ErrInvalidTimeout     = errors.New("invalid timeout: must be positive")
	ErrInvalidMaxBytes    = errors.New("invalid max bytes: must be positive")
	ErrInvalidRedirects   = errors.New("invalid max redirects: must be positive")
	ErrInvalidAttempts    = errors.New("invalid attempts: must be between 1 and 10")
	ErrInvalidDelay       = errors.New("invalid delay: must be non-negative")
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")
	ErrInvalidLimit       = errors.New("invalid limit: must be positive")
	ErrInvalidHealthCheck = errors.New("invalid health check url: must be http or https")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidListen      = errors.New("invalid listen address")
)
