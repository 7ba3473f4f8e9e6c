package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/irsalhamdi/e-commerce-cart/validate"
)

func HandleInitialize(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		chk, err := core.Initialize(ctx, claims.Identity(ctx), cn)
		if err != nil {
			switch {
			case errors.Is(err, ErrAlreadyInitialized):
				return weberr.Reject(err, "checkout_already_initialized", "a checkout is already open for this account", http.StatusConflict)
			case errors.Is(err, ErrNoPaymentMethod):
				return weberr.Reject(err, "no_payment_method_provided", "no supported payment method provided", http.StatusBadRequest)
			case errors.Is(err, ErrPaymentMethodUnavailable):
				return weberr.Reject(err, "payment_method_unavailable", "payment method unavailable", http.StatusNotFound)
			case errors.Is(err, product.ErrNotFound):
				return weberr.Reject(err, "product_not_found", "product not found", http.StatusNotFound)
			case errors.Is(err, ErrCurrencyMismatch):
				return weberr.Reject(err, "currency_mismatch", ErrCurrencyMismatch.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, pricing.ErrOverflow):
				return weberr.Reject(err, "amount_overflow", "quantity too large", http.StatusBadRequest)
			case errors.Is(err, pricing.ErrInvalidQuantity), errors.Is(err, ErrEmpty):
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
			return fmt.Errorf("initializing checkout: %w", err)
		}

		return web.Respond(ctx, w, chk, http.StatusCreated)
	}
}

func HandleShowCurrent(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("account not authenticated"))
		}

		chk, err := core.Current(ctx, clm.AccountID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching current checkout: %w", err)
		}

		return web.Respond(ctx, w, chk, http.StatusOK)
	}
}

func HandleVoid(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("account not authenticated"))
		}

		chk, err := core.Void(ctx, clm.AccountID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("voiding checkout: %w", err)
		}

		return web.Respond(ctx, w, chk, http.StatusOK)
	}
}
