package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging across inkr.
// Use these constants instead of raw strings.
const (
	// Identity and context
	FieldReportID  = "report_id"
	FieldComponent = "component"
	FieldOperation = "operation"

	// Configuration entities
	FieldTrigger    = "trigger"
	FieldTemplate   = "template"
	FieldIncrement  = "increment"
	FieldTechnology = "technology"
	FieldRoot       = "root"

	// Files and paths
	FieldPath        = "path"
	FieldDestination = "destination"
	FieldFile        = "file"

	// Outcomes
	FieldStatus  = "status"
	FieldOutcome = "outcome"
	FieldError   = "error"
	FieldKind    = "kind"

	// Counts and timing
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
)

type contextKey string

const (
	reportIDKey  contextKey = "logger_report_id"
	componentKey contextKey = "logger_component"
)

// WithReportID adds a generation report ID to the context for logging
func WithReportID(ctx context.Context, reportID string) context.Context {
	return context.WithValue(ctx, reportIDKey, reportID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if id, ok := ctx.Value(reportIDKey).(string); ok && id != "" {
		fields = append(fields, FieldReportID, id)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
// Example:
//
//	type Processor struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewProcessor() *Processor {
//	    return &Processor{logger: logger.ComponentLogger("generate")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
