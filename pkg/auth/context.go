// Package auth carries the authenticated user identity through request
// contexts. Requests without a valid token proceed as guests; authorization
// decisions happen per handler action.
package auth

import (
	"context"
	"time"
)

// Context is the identity attached to a request.
type Context struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Email       string
	Roles       []string
	ExpiresAt   time.Time
}

// IsGuest reports whether the request carries no authenticated user.
func (c *Context) IsGuest() bool {
	return c == nil || c.UserID == ""
}

// HasRole checks whether the user carries the given role.
func HasRole(c *Context, role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey struct{}

// NewContext attaches an auth context.
func NewContext(ctx context.Context, authCtx *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, authCtx)
}

// FromContext retrieves the auth context; a guest context is returned when
// none is attached.
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(contextKey{}).(*Context); ok && c != nil {
		return c
	}
	return &Context{Roles: []string{"guest"}}
}
