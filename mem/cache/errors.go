package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error caused by a cache geometry that
// cannot be simulated.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// A ConfigError reports which configuration parameter is invalid.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %v %s",
		ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) true.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
