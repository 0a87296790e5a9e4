package core

import "context"

// RequestMeta is the caller information recorded with audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// RequestMetaFrom returns the request metadata carried by ctx, if any.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// ContextWithIPAddress records the client address for audit logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	meta := RequestMetaFrom(ctx)
	meta.IPAddress = ip
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// ContextWithUserAgent records the client User-Agent for audit logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	meta := RequestMetaFrom(ctx)
	meta.UserAgent = ua
	return context.WithValue(ctx, requestMetaKey{}, meta)
}
