package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/core/payment"
	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/irsalhamdi/e-commerce-cart/random"
	"github.com/irsalhamdi/e-commerce-cart/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const referenceLength = 10

type Storer interface {
	QueryOpen(ctx context.Context, accountID string) (Checkout, error)
	Create(ctx context.Context, c Checkout) error
	Void(ctx context.Context, accountID string, now time.Time) (Checkout, error)
}

type ProductFetcher interface {
	FetchByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

type PaymentFinder interface {
	Find(ctx context.Context, accountID string, processor string, fields map[string]string) (payment.Method, error)
}

type Config struct {
	Log      logrus.FieldLogger
	Store    Storer
	Products ProductFetcher
	Payments PaymentFinder
	Engine   pricing.Engine

	// Processors is the order in which payment processors are tried.
	Processors []string
	Currency   string

	// MaxPricing bounds the lines priced at once. Zero means no limit.
	MaxPricing int
}

type Core struct {
	log        logrus.FieldLogger
	store      Storer
	products   ProductFetcher
	payments   PaymentFinder
	engine     pricing.Engine
	processors []string
	currency   string
	maxPricing int
	now        func() time.Time
}

func NewCore(cfg Config) *Core {
	return &Core{
		log:        cfg.Log,
		store:      cfg.Store,
		products:   cfg.Products,
		payments:   cfg.Payments,
		engine:     cfg.Engine,
		processors: cfg.Processors,
		currency:   cfg.Currency,
		maxPricing: cfg.MaxPricing,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Initialize prices the requested lines, binds the first populated payment
// processor and stores the resulting summary as the account's open checkout.
func (c *Core) Initialize(ctx context.Context, identity *claims.Claims, cn CheckoutNew) (Checkout, error) {
	if identity != nil {
		_, err := c.store.QueryOpen(ctx, identity.AccountID)
		switch {
		case err == nil:
			return Checkout{}, ErrAlreadyInitialized
		case !errors.Is(err, ErrNotFound):
			return Checkout{}, fmt.Errorf("fetching open checkout: %w", err)
		}
	}

	if len(cn.Items) == 0 {
		return Checkout{}, ErrEmpty
	}

	summary, err := c.price(ctx, cn.Items)
	if err != nil {
		return Checkout{}, err
	}

	processor, fields, ok := c.selectProcessor(cn.PaymentMethod)
	if !ok {
		return Checkout{}, ErrNoPaymentMethod
	}

	if identity == nil {
		return Checkout{}, fmt.Errorf("guest cannot use stored %s methods: %w", processor, ErrPaymentMethodUnavailable)
	}

	m, err := c.payments.Find(ctx, identity.AccountID, processor, fields)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			return Checkout{}, fmt.Errorf("%s: %w", processor, ErrPaymentMethodUnavailable)
		}
		return Checkout{}, fmt.Errorf("finding payment method: %w", err)
	}

	ref, err := random.Code(referenceLength)
	if err != nil {
		return Checkout{}, fmt.Errorf("generating reference: %w", err)
	}

	now := c.now()
	chk := Checkout{
		ID:              validate.GenerateID(),
		Reference:       ref,
		AccountID:       identity.AccountID,
		Processor:       processor,
		PaymentMethodID: m.ID,
		Status:          Open,
		CreatedAt:       now,
		UpdatedAt:       now,
		Summary:         summary,
	}

	if err := c.store.Create(ctx, chk); err != nil {
		return Checkout{}, err
	}

	c.log.WithFields(logrus.Fields{
		"checkout_id": chk.ID,
		"account_id":  chk.AccountID,
		"processor":   chk.Processor,
		"total":       chk.Total,
	}).Info("checkout initialized")

	return chk, nil
}

// price fetches every product in one round trip and prices the lines
// concurrently. Line order is preserved.
func (c *Core) price(ctx context.Context, lines []LineNew) (pricing.Summary, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	ps, err := c.products.FetchByIDs(ctx, ids)
	if err != nil {
		return pricing.Summary{}, fmt.Errorf("fetching products: %w", err)
	}
	products := product.Index(ps)

	for _, p := range ps {
		if p.Currency != c.currency {
			return pricing.Summary{}, fmt.Errorf("product[%s] in %s, checkout in %s: %w", p.ID, p.Currency, c.currency, ErrCurrencyMismatch)
		}
	}

	items := make([]pricing.Item, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	if c.maxPricing > 0 {
		g.SetLimit(c.maxPricing)
	}
	for i, l := range lines {
		i, l := i, l
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it, err := c.engine.Price(products, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			items[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pricing.Summary{}, err
	}

	return pricing.Aggregate(c.currency, items)
}

// selectProcessor walks the configured processors in order and returns the
// first one the request populated.
func (c *Core) selectProcessor(methods map[string]map[string]string) (string, map[string]string, bool) {
	for _, p := range c.processors {
		if fields, ok := methods[p]; ok && fields != nil {
			return p, fields, true
		}
	}
	return "", nil, false
}

// Current returns the account's open checkout.
func (c *Core) Current(ctx context.Context, accountID string) (Checkout, error) {
	chk, err := c.store.QueryOpen(ctx, accountID)
	if err != nil {
		return Checkout{}, err
	}
	return chk, nil
}

// Void releases the open checkout so a new one can be initialized.
func (c *Core) Void(ctx context.Context, accountID string) (Checkout, error) {
	chk, err := c.store.Void(ctx, accountID, c.now())
	if err != nil {
		return Checkout{}, err
	}

	c.log.WithFields(logrus.Fields{
		"checkout_id": chk.ID,
		"account_id":  accountID,
	}).Info("checkout voided")

	return chk, nil
}
