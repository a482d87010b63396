package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

func TestPrincipalFromContext(t *testing.T) {
	_, ok := auth.PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UserID: 3, Role: user.RoleAdmin})
	p, ok := auth.PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(3), p.UserID)
	assert.True(t, p.IsAdmin())

	_, ok = auth.PrincipalFromContext(auth.WithPrincipal(context.Background(), auth.Principal{}))
	assert.False(t, ok, "zero principal is anonymous")
}
