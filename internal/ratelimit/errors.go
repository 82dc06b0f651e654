package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrUninitialized is returned by Allow when Initialize has not been called yet.
	// Callers should treat it as a server error, not as a denial.
	ErrUninitialized = errors.New("rate limiter not initialized")

	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid rate limiter config")
)

// ConfigError reports a non-positive limit or window at construction time.
type ConfigError struct {
	Field string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s must be positive (got %v)", ErrInvalidConfig, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// IsUninitialized reports whether err is (or wraps) ErrUninitialized.
func IsUninitialized(err error) bool {
	return errors.Is(err, ErrUninitialized)
}
