package tool

import "context"

type invocationKeyCtx struct{}

// WithInvocationKey attaches an idempotency key to the context. Handlers for
// mutating tools use it to recognize a retried invocation of the same logical
// action and return the earlier result instead of repeating the side effect.
func WithInvocationKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, invocationKeyCtx{}, key)
}

// InvocationKey returns the idempotency key attached to the context,
// or "" when none was set.
func InvocationKey(ctx context.Context) string {
	key, _ := ctx.Value(invocationKeyCtx{}).(string)
	return key
}
