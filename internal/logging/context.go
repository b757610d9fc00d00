package logging

import "context"

type contextKey string

const (
	// TraceIDKey is the context key for the trace identifier.
	TraceIDKey contextKey = "trace_id"
	// SpanIDKey is the context key for the span identifier.
	SpanIDKey contextKey = "span_id"
)

// ContextWithTrace returns a context carrying the given trace and span IDs.
func ContextWithTrace(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, TraceIDKey, traceID)
	ctx = context.WithValue(ctx, SpanIDKey, spanID)
	return ctx
}

// extractContextFields pulls trace correlation fields out of the context.
// Returns nil when the context carries none.
func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}

	var fields map[string]interface{}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		if fields == nil {
			fields = make(map[string]interface{})
		}
		fields["trace_id"] = traceID
	}

	if spanID, ok := ctx.Value(SpanIDKey).(string); ok && spanID != "" {
		if fields == nil {
			fields = make(map[string]interface{})
		}
		fields["span_id"] = spanID
	}

	return fields
}
