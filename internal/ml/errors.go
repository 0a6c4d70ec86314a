package ml

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned by the service when no model was loaded.
var ErrModelUnavailable = errors.New("model unavailable")

// ValidationError reports an input field outside its declared domain.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PredictionError wraps a failure raised by the model itself.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// ConfigurationError reports a model bundle that is missing, unreadable or
// inconsistent.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("model bundle %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
