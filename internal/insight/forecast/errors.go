package forecast

import (
	"errors"
	"fmt"
)

// ErrModelNotLoaded is returned when predicting before Fit or LoadPersisted.
var ErrModelNotLoaded = errors.New("forecast model is not fitted or loaded")

// ErrAlreadyTrained is returned when Fit or LoadPersisted is called on an
// engine that already holds a model.
var ErrAlreadyTrained = errors.New("forecast engine already holds a fitted or loaded model")

// ErrMissingRegressor is returned when a row lacks a registered regressor.
var ErrMissingRegressor = errors.New("row is missing a regressor value")

// InsufficientDataError reports a history too short to fit.
type InsufficientDataError struct {
	Days     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d distinct day(s), need at least %d", e.Days, e.Required)
}

// ModelLoadError reports a persisted model that could not be read.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// ConfigError reports an invalid engine configuration, including a
// regressor registration that does not match the required set.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("forecast config: %s: %s", e.Field, e.Reason)
}
