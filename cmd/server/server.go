package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/e-commerce-cart/api"
	"github.com/irsalhamdi/e-commerce-cart/api/background"
	"github.com/irsalhamdi/e-commerce-cart/config"
	"github.com/irsalhamdi/e-commerce-cart/core/cart"
	"github.com/irsalhamdi/e-commerce-cart/core/events"
	"github.com/irsalhamdi/e-commerce-cart/core/fingerprint"
	"github.com/irsalhamdi/e-commerce-cart/core/payment"
	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/irsalhamdi/e-commerce-cart/rate"
	"github.com/plutov/paypal/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "CART"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime
	sessionManager.Cookie.Secure = cfg.Session.Secure
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	engine, err := pricing.NewEngine(cfg.Pricing.TaxRate, cfg.Pricing.DiscountRate, cfg.Pricing.TaxInTotal)
	if err != nil {
		return fmt.Errorf("invalid pricing config: %w", err)
	}

	bg := background.New(logger)

	bus := events.NewBus(logger, bg)
	activity := events.Log(logger)
	for _, name := range []string{cart.EventItemAdded, cart.EventItemDeleted, cart.EventCleared} {
		bus.Subscribe(name, activity)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kfk := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kfk.Close()

		for _, name := range []string{cart.EventItemAdded, cart.EventItemDeleted, cart.EventCleared} {
			bus.Subscribe(name, kfk.Handle)
		}
		logger.Infof("forwarding cart events to kafka topic %s", cfg.Kafka.Topic)
	}

	var cache cart.Cache = cart.NoCache{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		cache = cart.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	verifiers := make(map[string]payment.Verifier)
	if cfg.Stripe.APISecret != "" {
		var backends *stripe.Backends
		if cfg.Stripe.URL != "" {
			backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL: stripe.String(cfg.Stripe.URL),
			})
			backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
		}

		strp := &stripecl.API{}
		strp.Init(cfg.Stripe.APISecret, backends)
		verifiers[payment.ProcessorStripe] = payment.NewStripeVerifier(strp)
	}

	if cfg.Paypal.ClientID != "" {
		pp, err := paypal.NewClient(
			cfg.Paypal.ClientID,
			cfg.Paypal.Secret,
			cfg.Paypal.URL,
		)
		if err != nil {
			return fmt.Errorf("failed to build the paypal client: %w", err)
		}

		if _, err = pp.GetAccessToken(context.TODO()); err != nil {
			return fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
		verifiers[payment.ProcessorPaypal] = payment.NewPaypalVerifier(pp)
	}

	proxies, err := fingerprint.NewProxies(cfg.Web.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	limiter := rate.NewLimiter(cfg.Rate.Burst, time.Duration(cfg.Rate.Expiry)*time.Minute, cfg.Rate.RPS)
	defer limiter.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Session:    sessionManager,
		Limiter:    limiter,
		Events:     bus,
		CartCache:  cache,
		Engine:     engine,
		Currency:   cfg.Pricing.Currency,
		Processors: cfg.Payment.Processors,
		Verifiers:  verifiers,
		MaxPricing: cfg.Checkout.MaxPricing,
		Proxies:    proxies,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
