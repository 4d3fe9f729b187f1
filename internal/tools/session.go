package tools

import "context"

type sessionKey struct{}

// WithSessionID attaches the conversation session ID to the context so tools
// can apply per-session fairness limits.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionIDFrom returns the session ID attached to the context, if any
func SessionIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}
