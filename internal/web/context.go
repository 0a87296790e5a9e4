package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns the request's IP without the port.
// RemoteAddr was already rewritten by TrustedRealIP for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
