package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/fingerprint"
	"github.com/irsalhamdi/e-commerce-cart/rate"
)

// RateLimit throttles each visitor, keyed by fingerprint when one is known.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			key := fingerprint.Get(ctx)
			if key == "" {
				key = fingerprint.SocketIP(r)
			}

			if !lim.Allow(key) {
				return weberr.TooManyRequests(errors.New("visitor exceeded the request rate"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
