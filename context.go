package idempotence

import "context"

type contextKey string

// idempotenceContextKey defines which key to use for context.Context.
var idempotenceContextKey contextKey = "idempotence-key"

// NewContext returns a new Context that carries the raw idempotency key.
// The middleware stores the key before invoking the downstream handler so
// handlers can pick it up with FromContext.
func NewContext(ctx context.Context, idempotencyKey string) context.Context {
	return context.WithValue(ctx, idempotenceContextKey, idempotencyKey)
}

// FromContext returns the idempotency key stored in ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotenceContextKey).(string)
	return key, ok
}
