// Package ctxutil stores request-scoped values in a context.Context.
package ctxutil

import (
	"context"

	"github.com/heartmarshall/gqlcrud/perm"
)

type ctxKey string

const (
	identityKey  ctxKey = "identity"
	requestIDKey ctxKey = "request_id"
)

// WithIdentity stores the caller identity in the context.
func WithIdentity(ctx context.Context, id perm.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx extracts the caller identity from the context.
// Returns the anonymous identity when none was stored, so callers can use
// the result unconditionally.
func IdentityFromCtx(ctx context.Context) perm.Identity {
	id, ok := ctx.Value(identityKey).(perm.Identity)
	if !ok {
		return perm.Anonymous()
	}
	return id
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
