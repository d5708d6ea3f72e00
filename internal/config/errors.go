package config

import "errors"

// Validation errors returned by Config.Validate. Match with errors.Is.
var (
	ErrInvalidMaxRetries  = errors.New("invalid max retries: must be positive")
	ErrInvalidDelay       = errors.New("invalid delay: must be non-negative")
	ErrInvalidJitter      = errors.New("invalid jitter: must be between 0 and 1")
	ErrInvalidTimeout     = errors.New("invalid timeout: must be positive")
	ErrInvalidLimit       = errors.New("invalid limit: must be positive")
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
	ErrInvalidMetricsPort = errors.New("invalid metrics port: must be between 0 and 65535")
	ErrInvalidFormat      = errors.New("invalid output format: must be one of text, json, csv, yaml")
	ErrInvalidEndpoint    = errors.New("invalid endpoint: must be an absolute http(s) url")
	ErrInvalidProxy       = errors.New("invalid proxy url")
)
