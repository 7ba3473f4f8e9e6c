package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/irsalhamdi/e-commerce-cart/validate"
)

const maxRows = 100

func HandleList(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		page := web.QueryInt(r, "page", 1)
		rows := web.QueryInt(r, "rows", 20)
		if page < 1 || rows < 1 || rows > maxRows {
			return weberr.NewError(
				errors.New("invalid pagination"),
				fmt.Sprintf("page must be positive and rows between 1 and %d", maxRows),
				http.StatusBadRequest,
			)
		}

		ps, err := store.List(ctx, page, rows)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}

		return web.Respond(ctx, w, ps, http.StatusOK)
	}
}

func HandleShow(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		p, err := store.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleCreate(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if pn.ID == "" {
			pn.ID = validate.GenerateID()
		}

		now := time.Now().UTC()
		p := Product{
			ID:        pn.ID,
			Name:      pn.Name,
			Price:     pn.Price,
			Currency:  strings.ToUpper(pn.Currency),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}

		if err := store.Create(ctx, p); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Reject(err, "product_exists", "a product with this id already exists", http.StatusConflict)
			}
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, p, http.StatusCreated)
	}
}
