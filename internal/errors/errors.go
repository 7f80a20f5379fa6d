// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrNumericDegenerate = errors.New("numerically degenerate")
	ErrInfeasibleTarget  = errors.New("infeasible target")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
)

// ConfigurationError represents an invalid or missing option.
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientDataError reports an input shorter than the minimum window.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data [%s]: need at least %d, got %d", e.What, e.Need, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(what string, need, got int) *InsufficientDataError {
	return &InsufficientDataError{
		What: what,
		Need: need,
		Got:  got,
	}
}

// NumericDegenerateError flags a metric whose denominator vanished.
type NumericDegenerateError struct {
	Metric string
	Reason string
}

func (e *NumericDegenerateError) Error() string {
	return fmt.Sprintf("%s undefined: %s", e.Metric, e.Reason)
}

func (e *NumericDegenerateError) Is(target error) bool {
	return target == ErrNumericDegenerate
}

// NewNumericDegenerateError creates a new NumericDegenerateError.
func NewNumericDegenerateError(metric, reason string) *NumericDegenerateError {
	return &NumericDegenerateError{
		Metric: metric,
		Reason: reason,
	}
}

// InfeasibleTargetError reports a target return outside the sampled frontier.
type InfeasibleTargetError struct {
	Target    float64
	MinReturn float64
	MaxReturn float64
}

func (e *InfeasibleTargetError) Error() string {
	return fmt.Sprintf("target return %.4f is not attainable (sampled range %.4f to %.4f)", e.Target, e.MinReturn, e.MaxReturn)
}

func (e *InfeasibleTargetError) Is(target error) bool {
	return target == ErrInfeasibleTarget
}

// NewInfeasibleTargetError creates a new InfeasibleTargetError.
func NewInfeasibleTargetError(target, minReturn, maxReturn float64) *InfeasibleTargetError {
	return &InfeasibleTargetError{
		Target:    target,
		MinReturn: minReturn,
		MaxReturn: maxReturn,
	}
}

// DataError represents a storage or input-data error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
