// Package auth resolves server-side sessions into a request-scoped Principal.
//
// Handlers read the Principal from the request context and pass its UserID
// explicitly into every service call; nothing in the storefront keeps a
// "current user" anywhere else.
package auth

import (
	"context"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

type Principal struct {
	UserID   int64
	Username string
	Role     user.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == user.RoleAdmin
}

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.UserID != 0
}
