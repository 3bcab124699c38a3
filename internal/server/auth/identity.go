package auth

import (
	"context"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/models"
)

// Identity is the already-authenticated caller.
type Identity struct {
	AccountID int64
	Role      models.Role
	// Addr is the remote address the request arrived from, if known.
	Addr string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// RequireRole returns the caller's identity if its role is at least min.
func RequireRole(ctx context.Context, min models.Role) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, common.ErrorUnauthorized
	}
	if id.Role < min {
		return Identity{}, common.ErrorForbidden
	}
	return id, nil
}
