package auth

import (
	"context"
	"errors"
)

var ErrPrincipalNotFoundInContext = errors.New("principal not found in context")

type principalContextKey struct{}

// GetPrincipalFromContext retrieves the authenticated principal stored by the authentication middleware.
func GetPrincipalFromContext(ctx context.Context) (*Principal, error) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, ErrPrincipalNotFoundInContext
	}
	return principal, nil
}

// SetPrincipalInContext stores the principal in the context.
func SetPrincipalInContext(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}
