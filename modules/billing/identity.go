package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingsync/pkg/jwt"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// IdentityFunc reads the authenticated caller from a request context.
type IdentityFunc func(ctx context.Context) (Identity, bool)

// JWTIdentity reads the identity from claims stored by jwt.Middleware.
func JWTIdentity(ctx context.Context) (Identity, bool) {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, false
	}
	return Identity{UserID: userID, Email: claims.Email, Name: claims.Name}, true
}
