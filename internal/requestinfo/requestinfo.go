// Package requestinfo carries request-scoped identity through the context.
// Middleware sets the values; services read them when building audit
// entries. Keeping this package free of net/http lets the ledger core stay
// transport-agnostic.
package requestinfo

import "context"

type (
	actorIDKey   struct{}
	originKey    struct{}
	requestIDKey struct{}
)

// AnonymousActor is recorded when no actor identity reached the middleware.
const AnonymousActor = "anonymous"

// WithActorID injects the acting user's identifier into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// ActorID retrieves the acting user's identifier, or AnonymousActor when
// none was set.
func ActorID(ctx context.Context) string {
	if id, ok := ctx.Value(actorIDKey{}).(string); ok && id != "" {
		return id
	}
	return AnonymousActor
}

// WithOrigin injects the client's network address into the context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// Origin retrieves the client's network address, or empty.
func Origin(ctx context.Context) string {
	if origin, ok := ctx.Value(originKey{}).(string); ok {
		return origin
	}
	return ""
}

// WithRequestID injects the request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID retrieves the request correlation ID, or empty.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
