package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/core/fingerprint"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/irsalhamdi/e-commerce-cart/validate"
)

func resolve(ctx context.Context, core *Core) (Cart, error) {
	crt, err := core.Resolve(ctx, claims.Identity(ctx), fingerprint.Get(ctx))
	if err != nil {
		if errors.Is(err, ErrFingerprintRequired) {
			return Cart{}, weberr.BadRequest(err)
		}
		return Cart{}, fmt.Errorf("resolving cart: %w", err)
	}
	return crt, nil
}

func HandleShow(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		crt, err := resolve(ctx, core)
		if err != nil {
			return err
		}

		crt, err = core.Show(ctx, crt.ID)
		if err != nil {
			return fmt.Errorf("showing cart: %w", err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleDelete(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		crt, err := resolve(ctx, core)
		if err != nil {
			return err
		}

		if err := core.Clear(ctx, crt); err != nil {
			return fmt.Errorf("clearing cart[%s]: %w", crt.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleCreateItem(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		crt, err := resolve(ctx, core)
		if err != nil {
			return err
		}

		it, err := core.AddItem(ctx, crt, in.ProductID, in.Quantity)
		if err != nil {
			return itemError(err, weberr.WithFields(map[string]interface{}{
				"cart_id":    crt.ID,
				"product_id": in.ProductID,
			}))
		}

		return web.Respond(ctx, w, it, http.StatusOK)
	}
}

func HandleDeleteItem(core *Core) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		itemID := web.Param(r, "id")

		crt, err := resolve(ctx, core)
		if err != nil {
			return err
		}

		if err := core.RemoveItem(ctx, crt, itemID); err != nil {
			return itemError(err, weberr.WithFields(map[string]interface{}{
				"cart_id":      crt.ID,
				"cart_item_id": itemID,
			}))
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func itemError(err error, opts ...weberr.Opt) error {
	switch {
	case errors.Is(err, product.ErrNotFound):
		return weberr.Reject(err, "product_not_found", "product not found", http.StatusNotFound, opts...)
	case errors.Is(err, ErrItemNotFound):
		return weberr.Reject(err, "cart_item_not_found", "cart item not found", http.StatusNotFound, opts...)
	case errors.Is(err, ErrInvalidQuantity):
		return weberr.Reject(err, "invalid_quantity", err.Error(), http.StatusBadRequest, opts...)
	case errors.Is(err, ErrOverflow):
		return weberr.Reject(err, "amount_overflow", "quantity too large", http.StatusBadRequest, opts...)
	case errors.Is(err, ErrCurrencyMismatch):
		return weberr.Reject(err, "currency_mismatch", "product currency differs from cart currency", http.StatusUnprocessableEntity, opts...)
	}
	return weberr.Wrap(err, opts...)
}
