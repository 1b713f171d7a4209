package services

import "context"

type contextKey string

const clientIPKey contextKey = "client_ip"

// WithClientIP stores the caller's remote address for security audit events.
// The HTTP layer sets it before dispatching into services.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
