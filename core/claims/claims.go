package claims

import (
	"context"
	"errors"
)

const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

var ErrMissing = errors.New("claim value missing from context")

// Claims is the authenticated account the request acts for.
type Claims struct {
	AccountID string
	Role      string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, ErrMissing
	}
	return v, nil
}

// Identity returns the claims of the request or nil for a guest.
func Identity(ctx context.Context) *Claims {
	c, err := Get(ctx)
	if err != nil {
		return nil
	}
	return &c
}

func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.Role == RoleAdmin
}
