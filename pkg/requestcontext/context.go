// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getter/setter pairs live here for values that middleware
// sets and services consume. Keeping this package free of net/http lets
// services import only what they need.
//
// Usage in services (read values):
//
//	correlationID := requestcontext.CorrelationID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCorrelationID(ctx, id)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	correlationIDKey struct{}
	actorKey         struct{}
	clientIPKey      struct{}
	clientAppKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyCorrelationID = correlationIDKey{}
	ContextKeyActor         = actorKey{}
	ContextKeyClientIP      = clientIPKey{}
	ContextKeyClientApp     = clientAppKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// CorrelationID retrieves the correlation ID linking a request to its audit
// trail. Empty if not set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation ID into the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// Actor retrieves the authenticated administrative actor from the context.
// Empty for unauthenticated evaluation traffic.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok {
		return actor
	}
	return ""
}

// WithActor injects an administrative actor identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ClientIP retrieves the client IP recorded by the metadata middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects a client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// ClientApp retrieves the parsed User-Agent summary recorded by the metadata
// middleware. Empty if the caller sent no User-Agent.
func ClientApp(ctx context.Context) string {
	if app, ok := ctx.Value(ContextKeyClientApp).(string); ok {
		return app
	}
	return ""
}

// WithClientApp injects a client application summary into the context.
func WithClientApp(ctx context.Context, app string) context.Context {
	return context.WithValue(ctx, ContextKeyClientApp, app)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
