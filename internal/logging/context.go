package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type connectionCtxKey struct{}
type requestCtxKey struct{}

// WithConnectionID tags ctx with the peripheral connection being browsed.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, connectionCtxKey{}, connectionID)
}

// ConnectionIDFromContext returns the connection id or "".
func ConnectionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(connectionCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID tags ctx with a caller request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if connectionID := ConnectionIDFromContext(ctx); connectionID != "" {
		fields = append(fields, zap.String("connection.id", connectionID))
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}
