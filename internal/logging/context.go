package logging

import (
	"context"
	"log/slog"

	"reframe/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the structured logging key for job stage names.
	FieldStage = "stage"
	// FieldRequestID is the structured logging key for API request identifiers.
	FieldRequestID = "request_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision a log line records.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	trace := services.TraceFromContext(ctx)
	var fields []slog.Attr
	if trace.JobID > 0 {
		fields = append(fields, slog.Int64(FieldJobID, trace.JobID))
	}
	if trace.Stage != "" {
		fields = append(fields, slog.String(FieldStage, trace.Stage))
	}
	if trace.RequestID != "" {
		fields = append(fields, slog.String(FieldRequestID, trace.RequestID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
