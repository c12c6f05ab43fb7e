// Package auditcontext carries request metadata into audit writes.
package auditcontext

import "context"

type ipAddressKey struct{}
type userAgentKey struct{}
type requestIDKey struct{}

func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	if ip != "" {
		ctx = context.WithValue(ctx, ipAddressKey{}, ip)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	}
	return ctx
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func IPAddressFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ipAddressKey{}).(string)
	return value
}

func UserAgentFromContext(ctx context.Context) string {
	value, _ := ctx.Value(userAgentKey{}).(string)
	return value
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}
