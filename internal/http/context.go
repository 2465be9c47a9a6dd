package http

import "context"

type contextKey string

const (
	requestIDContextKey contextKey = "techblog/request-id"
	adminContextKey     contextKey = "techblog/admin"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// IsAdmin reports whether the request was authenticated as the administrator.
func IsAdmin(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, _ := ctx.Value(adminContextKey).(bool)
	return value
}

func withAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}
