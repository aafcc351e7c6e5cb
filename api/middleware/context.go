package middleware

import (
	"context"

	"github.com/dmoreira/storefront-backend/pkg/types"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity injects the resolved caller identity into the context.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	if ctx == nil {
		return types.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(types.Identity)
	if !ok || identity.SessionID == "" {
		return types.Identity{}, false
	}
	return identity, true
}
