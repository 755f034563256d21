package middleware

import (
	"context"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
)

type contextKey string

const ctxOwner contextKey = "cart_owner"

// WithOwner injects the resolved request owner into the context.
func WithOwner(ctx context.Context, owner identity.Owner) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwner, owner)
}

// OwnerFromContext returns the request owner, or the zero Owner for
// anonymous requests.
func OwnerFromContext(ctx context.Context) identity.Owner {
	if ctx == nil {
		return identity.Owner{}
	}
	if v, ok := ctx.Value(ctxOwner).(identity.Owner); ok {
		return v
	}
	return identity.Owner{}
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) string {
	owner := OwnerFromContext(ctx)
	if !owner.IsUser() {
		return ""
	}
	return owner.ID
}
