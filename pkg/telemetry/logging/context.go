package logging

import "context"

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// UpstreamKey is the context key for upstream names.
	UpstreamKey contextKey = "upstream"

	// ModelKey is the context key for model names.
	ModelKey contextKey = "model"

	// PriorityKey is the context key for dispatch priorities.
	PriorityKey contextKey = "priority"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUpstream adds an upstream name to the context.
func WithUpstream(ctx context.Context, upstream string) context.Context {
	return context.WithValue(ctx, UpstreamKey, upstream)
}

// GetUpstream retrieves the upstream name from the context.
func GetUpstream(ctx context.Context) string {
	if upstream, ok := ctx.Value(UpstreamKey).(string); ok {
		return upstream
	}
	return ""
}

// WithModel adds a model name to the context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetModel retrieves the model name from the context.
func GetModel(ctx context.Context) string {
	if model, ok := ctx.Value(ModelKey).(string); ok {
		return model
	}
	return ""
}

// WithPriority adds a dispatch priority label to the context.
func WithPriority(ctx context.Context, priority string) context.Context {
	return context.WithValue(ctx, PriorityKey, priority)
}

// GetPriority retrieves the dispatch priority label from the context.
func GetPriority(ctx context.Context) string {
	if priority, ok := ctx.Value(PriorityKey).(string); ok {
		return priority
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if upstream := GetUpstream(ctx); upstream != "" {
		fields = append(fields, "upstream", upstream)
	}
	if model := GetModel(ctx); model != "" {
		fields = append(fields, "model", model)
	}
	if priority := GetPriority(ctx); priority != "" {
		fields = append(fields, "priority", priority)
	}

	return fields
}
