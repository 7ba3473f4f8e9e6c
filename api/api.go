package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-commerce-cart/api/middleware"
	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/auth"
	"github.com/irsalhamdi/e-commerce-cart/core/cart"
	"github.com/irsalhamdi/e-commerce-cart/core/checkout"
	"github.com/irsalhamdi/e-commerce-cart/core/customer"
	"github.com/irsalhamdi/e-commerce-cart/core/events"
	"github.com/irsalhamdi/e-commerce-cart/core/fingerprint"
	"github.com/irsalhamdi/e-commerce-cart/core/payment"
	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/irsalhamdi/e-commerce-cart/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Limiter    *rate.Limiter
	Events     events.Publisher
	CartCache  cart.Cache
	Engine     pricing.Engine
	Currency   string
	Processors []string
	Verifiers  map[string]payment.Verifier
	MaxPricing int
	Proxies    *fingerprint.Proxies
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, auth.Identify())
	a.mw = append(a.mw, fingerprint.Middleware(cfg.Session, cfg.Proxies))
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate()
	admin := auth.Admin()

	products := product.NewStore(cfg.DB)

	carts := cart.NewCore(cart.Config{
		Log:       cfg.Log,
		Store:     cart.NewStore(cfg.DB),
		Products:  products,
		Customers: customer.NewStore(cfg.DB),
		Events:    cfg.Events,
		Cache:     cfg.CartCache,
		Currency:  cfg.Currency,
	})

	payments := payment.NewCore(cfg.Log, payment.NewStore(cfg.DB), cfg.Processors, cfg.Verifiers)

	checkouts := checkout.NewCore(checkout.Config{
		Log:        cfg.Log,
		Store:      checkout.NewStore(cfg.DB),
		Products:   products,
		Payments:   payments,
		Engine:     cfg.Engine,
		Processors: cfg.Processors,
		Currency:   cfg.Currency,
		MaxPricing: cfg.MaxPricing,
	})

	a.Handle(http.MethodGet, "/health", handleHealth(cfg.DB))

	a.Handle(http.MethodGet, "/products", product.HandleList(products))
	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(products))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(products), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(carts))
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(carts))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(carts))
	a.Handle(http.MethodDelete, "/cart/items/{id}", cart.HandleDeleteItem(carts))

	a.Handle(http.MethodPost, "/payment-methods", payment.HandleCreate(payments), authen)
	a.Handle(http.MethodGet, "/payment-methods", payment.HandleList(payments), authen)

	a.Handle(http.MethodPost, "/checkouts", checkout.HandleInitialize(checkouts))
	a.Handle(http.MethodGet, "/checkouts/current", checkout.HandleShowCurrent(checkouts), authen)
	a.Handle(http.MethodDelete, "/checkouts/current", checkout.HandleVoid(checkouts), authen)

	return a.Router
}

func handleHealth(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		status := struct {
			Status string `json:"status"`
		}{Status: "ok"}

		if err := database.StatusCheck(ctx, db); err != nil {
			return weberr.NewError(err, "database not ready", http.StatusServiceUnavailable)
		}

		return web.Respond(ctx, w, status, http.StatusOK)
	}
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
