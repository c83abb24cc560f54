package services

import "context"

type traceKey struct{}

// Trace identifies the work a context belongs to. Zero fields are unset.
type Trace struct {
	JobID     int64
	Stage     string
	RequestID string
}

// TraceFromContext returns the trace attached to ctx, or the zero Trace.
func TraceFromContext(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	trace, _ := ctx.Value(traceKey{}).(Trace)
	return trace
}

func withTrace(ctx context.Context, update func(*Trace)) context.Context {
	trace := TraceFromContext(ctx)
	update(&trace)
	return context.WithValue(ctx, traceKey{}, trace)
}

// WithJobID tags ctx with a queue job id. Non-positive ids are ignored.
func WithJobID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.JobID = id })
}

// WithStage tags ctx with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.Stage = stage })
}

// WithRequestID tags ctx with an API correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.RequestID = id })
}
