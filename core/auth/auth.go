// Package auth carries the identity resolved by the gateway into the request.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
)

const (
	AccountHeader = "X-Account-Id"
	RoleHeader    = "X-Account-Role"
)

// Identify stores the account sent by the gateway in the request context.
// Requests without the header continue as guests.
func Identify() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			id := strings.TrimSpace(r.Header.Get(AccountHeader))
			if id != "" {
				role := strings.ToUpper(strings.TrimSpace(r.Header.Get(RoleHeader)))
				if role == "" {
					role = claims.RoleCustomer
				}
				ctx = claims.Set(ctx, claims.Claims{AccountID: id, Role: role})
			}

			return handler(ctx, w, r.WithContext(ctx))
		}
		return h
	}
	return m
}

func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("account not authenticated"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("account not authenticated"))
			}
			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("account is not an admin"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// LoadAndSave adapts the session manager to the web handler chain.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}
