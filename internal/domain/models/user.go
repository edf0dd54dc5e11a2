package models

import (
	"context"

	"github.com/borauni/ride-dispatch/internal/domain/types"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// User is the authenticated caller identity derived from the access token.
type User struct {
	ID   uuid.UUID
	Name string
	Role types.UserRole
}

var anonymous = &User{}

// AnonymousUser is the identity of requests without credentials.
func AnonymousUser() *User {
	return anonymous
}

func (u *User) IsAnonymous() bool {
	return u == anonymous
}

type userCtxKey struct{}

// WithUser stores the caller identity in the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the caller identity, or nil when absent.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
