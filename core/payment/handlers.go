package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/validate"
)

func HandleCreate(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("account not authenticated"))
		}

		var mn MethodNew
		if err := web.Decode(w, r, &mn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(mn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		m, err := core.Register(ctx, clm.AccountID, mn)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnknownProcessor), errors.Is(err, ErrMissingField):
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrRejected):
				return weberr.Reject(err, "payment_method_rejected", "the payment processor rejected the payment method", http.StatusUnprocessableEntity)
			case errors.Is(err, ErrDuplicate):
				return weberr.Reject(err, "payment_method_duplicate", "payment method already registered", http.StatusConflict)
			}
			return fmt.Errorf("registering payment method: %w", err)
		}

		return web.Respond(ctx, w, m, http.StatusCreated)
	}
}

func HandleList(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("account not authenticated"))
		}

		ms, err := core.List(ctx, clm.AccountID)
		if err != nil {
			return fmt.Errorf("listing payment methods: %w", err)
		}

		return web.Respond(ctx, w, ms, http.StatusOK)
	}
}
