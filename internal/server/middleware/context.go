// Package middleware holds the HTTP middleware chain: client IP, bearer auth, throttling, access logs, metrics and tracing.
package middleware

import "context"

type contextKey struct{ name string }

var (
	accountIDKey = contextKey{"account_id"}
	phoneKey     = contextKey{"phone"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated account id and phone.
func WithIdentity(ctx context.Context, accountID, phone string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	ctx = context.WithValue(ctx, phoneKey, phone)
	return ctx
}

// AccountID returns the authenticated account id and true if set.
func AccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountIDKey).(string)
	return v, ok && v != ""
}

// Phone returns the authenticated phone and true if set.
func Phone(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(phoneKey).(string)
	return v, ok && v != ""
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP stored by the ClientIP middleware, or "unknown".
// Its signature matches audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
