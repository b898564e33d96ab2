// Package errors provides error handling for inkr.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing output
//
// Usage:
//
//	// Wrap with context
//	if err := load(); err != nil {
//	    return errors.Wrap(err, "failed to load context configuration")
//	}
//
//	// Tag with a stable kind
//	return errors.Mark(errors.Newf("trigger %q undefined", id), errors.ErrConfigurationInvalid)
//
//	// Check kinds
//	if errors.Is(err, errors.ErrPluginMissing) {
//	    // install the plugin
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
	CombineErrors  = crdb.CombineErrors
)

// AssertionFailedf reports a programming error.
var AssertionFailedf = crdb.AssertionFailedf

// Error kinds surfaced by the generator. Every propagated error is marked
// with exactly one of these so callers can branch with errors.Is.
var (
	// ErrConfigurationInvalid indicates a bad or missing trigger, template,
	// increment or matcher reference in the configuration root
	ErrConfigurationInvalid = New("configuration invalid")

	// ErrPluginMissing indicates no technology bundle is registered for a type
	ErrPluginMissing = New("plugin missing")

	// ErrInputReaderMissing indicates the bundle exists but ships no input reader
	ErrInputReaderMissing = New("input reader missing")

	// ErrModelBuild indicates the input does not satisfy the trigger it is modeled against
	ErrModelBuild = New("model build error")

	// ErrTemplateRender indicates a template could not be rendered
	ErrTemplateRender = New("template render error")

	// ErrDestinationWrite indicates a rendered artifact could not be written
	ErrDestinationWrite = New("destination write error")

	// ErrDetectionFailed wraps traversal or matcher failures during pattern detection
	ErrDetectionFailed = New("detection failed")

	// ErrInvalidRequest indicates nil or contradictory arguments
	ErrInvalidRequest = New("invalid request")

	// ErrCyclicInput indicates a container input refers back to itself
	ErrCyclicInput = New("cyclic input")

	// ErrNotFound indicates the requested trigger, template or increment does not exist
	ErrNotFound = New("not found")
)

var kinds = []struct {
	err  error
	name string
}{
	// ErrCyclicInput is checked before ErrConfigurationInvalid since it is marked with both
	{ErrCyclicInput, "CyclicInput"},
	{ErrConfigurationInvalid, "ConfigurationInvalid"},
	{ErrInputReaderMissing, "InputReaderMissing"},
	{ErrPluginMissing, "PluginMissing"},
	{ErrModelBuild, "ModelBuildError"},
	{ErrTemplateRender, "TemplateRenderError"},
	{ErrDestinationWrite, "DestinationWriteError"},
	{ErrDetectionFailed, "DetectionFailed"},
	{ErrInvalidRequest, "InvalidRequest"},
	{ErrNotFound, "NotFound"},
}

// Kind returns the stable kind name of err, or "Internal" if err carries none
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// NewConfigurationError creates a configuration error with a formatted message
func NewConfigurationError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrConfigurationInvalid)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// WrapKind wraps err with a message and marks it with kind
func WrapKind(err error, kind error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), kind)
}

// WrapKindf is WrapKind with a formatted message
func WrapKindf(err error, kind error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), kind)
}

// IsConfigurationError checks if an error is or wraps ErrConfigurationInvalid
func IsConfigurationError(err error) bool {
	return err != nil && Is(err, ErrConfigurationInvalid)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
