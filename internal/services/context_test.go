package services_test

import (
	"context"
	"testing"

	"reframe/internal/services"
)

func TestTraceAccumulates(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "plan")
	ctx = services.WithRequestID(ctx, "req-123")
	inner := services.WithStage(ctx, "transcode")

	want := services.Trace{JobID: 42, Stage: "transcode", RequestID: "req-123"}
	if got := services.TraceFromContext(inner); got != want {
		t.Fatalf("trace = %+v, want %+v", got, want)
	}
	if got := services.TraceFromContext(ctx).Stage; got != "plan" {
		t.Fatalf("outer stage changed to %q", got)
	}
}

func TestTraceIgnoresEmptyValues(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	ctx = services.WithJobID(ctx, 0)
	ctx = services.WithRequestID(ctx, "")
	if got := services.TraceFromContext(ctx); got != (services.Trace{}) {
		t.Fatalf("expected empty trace, got %+v", got)
	}
}
