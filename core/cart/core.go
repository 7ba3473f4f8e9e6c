package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/core/customer"
	"github.com/irsalhamdi/e-commerce-cart/core/events"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/irsalhamdi/e-commerce-cart/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Storer interface {
	QueryByID(ctx context.Context, cartID string) (Cart, error)
	QueryByCustomer(ctx context.Context, customerID string) (Cart, error)
	QueryByFingerprint(ctx context.Context, fingerprint string) (Cart, error)
	Create(ctx context.Context, c Cart) (bool, error)
	QueryItems(ctx context.Context, cartID string) ([]Item, error)
	AddItem(ctx context.Context, it Item) (Item, Cart, error)
	DeleteItem(ctx context.Context, cartID string, itemID string, now time.Time) (Item, Cart, error)
	DeleteItems(ctx context.Context, cartID string, now time.Time) ([]Item, Cart, error)
}

type ProductFetcher interface {
	Fetch(ctx context.Context, id string) (product.Product, error)
}

type CustomerProvider interface {
	Ensure(ctx context.Context, accountID string) (customer.Customer, error)
}

type Config struct {
	Log       logrus.FieldLogger
	Store     Storer
	Products  ProductFetcher
	Customers CustomerProvider
	Events    events.Publisher
	Cache     Cache
	Currency  string
}

type Core struct {
	log       logrus.FieldLogger
	store     Storer
	products  ProductFetcher
	customers CustomerProvider
	events    events.Publisher
	cache     Cache
	currency  string
	sfg       singleflight.Group
	now       func() time.Time
}

func NewCore(cfg Config) *Core {
	c := &Core{
		log:       cfg.Log,
		store:     cfg.Store,
		products:  cfg.Products,
		customers: cfg.Customers,
		events:    cfg.Events,
		cache:     cfg.Cache,
		currency:  cfg.Currency,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if c.events == nil {
		c.events = events.Discard{}
	}
	if c.cache == nil {
		c.cache = NoCache{}
	}
	return c
}

// Resolve returns the visitor's cart: the customer's cart first, then the
// fingerprint's, creating one when neither exists.
func (c *Core) Resolve(ctx context.Context, identity *claims.Claims, fingerprint string) (Cart, error) {
	if fingerprint == "" {
		return Cart{}, ErrFingerprintRequired
	}

	var customerID *string
	if identity != nil {
		cus, err := c.customers.Ensure(ctx, identity.AccountID)
		if err != nil {
			return Cart{}, fmt.Errorf("resolving customer: %w", err)
		}
		customerID = &cus.ID
	}

	crt, err := c.find(ctx, customerID, fingerprint)
	if err == nil {
		return crt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Cart{}, err
	}

	now := c.now()
	crt = Cart{
		ID:          validate.GenerateID(),
		CustomerID:  customerID,
		Fingerprint: fingerprint,
		Currency:    c.currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := c.store.Create(ctx, crt)
	if err != nil {
		return Cart{}, fmt.Errorf("creating cart: %w", err)
	}
	if !created {
		// A concurrent request created it first.
		return c.find(ctx, customerID, fingerprint)
	}

	c.log.WithField("cart_id", crt.ID).Info("cart created")
	return crt, nil
}

func (c *Core) find(ctx context.Context, customerID *string, fingerprint string) (Cart, error) {
	if customerID != nil {
		crt, err := c.store.QueryByCustomer(ctx, *customerID)
		if err == nil {
			return crt, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Cart{}, fmt.Errorf("fetching cart of customer[%s]: %w", *customerID, err)
		}
	}

	crt, err := c.store.QueryByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Cart{}, err
		}
		return Cart{}, fmt.Errorf("fetching cart by fingerprint: %w", err)
	}
	return crt, nil
}

// Show returns the cart with its items, from the cache when possible.
func (c *Core) Show(ctx context.Context, cartID string) (Cart, error) {
	v, err, _ := c.sfg.Do(cartID, func() (interface{}, error) {
		crt, err := c.cache.Get(ctx, cartID)
		if err == nil {
			return crt, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WithField("cart_id", cartID).Warnf("cache get: %v", err)
		}

		gen, genErr := c.cache.Generation(ctx, cartID)
		if genErr != nil {
			c.log.WithField("cart_id", cartID).Warnf("cache generation: %v", genErr)
		}

		crt, err = c.store.QueryByID(ctx, cartID)
		if err != nil {
			return Cart{}, fmt.Errorf("fetching cart[%s]: %w", cartID, err)
		}

		crt.Items, err = c.store.QueryItems(ctx, cartID)
		if err != nil {
			return Cart{}, err
		}

		if genErr != nil {
			return crt, nil
		}
		switch err := c.cache.Set(ctx, crt, gen); {
		case errors.Is(err, ErrStale):
			c.log.WithField("cart_id", cartID).Debug("cart changed during read, snapshot skipped")
		case err != nil:
			c.log.WithField("cart_id", cartID).Warnf("cache set: %v", err)
		}
		return crt, nil
	})
	if err != nil {
		return Cart{}, err
	}
	return v.(Cart), nil
}

// AddItem adds quantity units of the product to the cart. Adding a product
// the cart already holds accumulates onto the existing item.
func (c *Core) AddItem(ctx context.Context, crt Cart, productID string, quantity int64) (Item, error) {
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}

	p, err := c.products.Fetch(ctx, productID)
	if err != nil {
		return Item{}, fmt.Errorf("fetching product: %w", err)
	}

	if p.Currency != crt.Currency {
		return Item{}, fmt.Errorf("product[%s] in %s, cart in %s: %w", p.ID, p.Currency, crt.Currency, ErrCurrencyMismatch)
	}

	if p.Price > 0 && quantity > math.MaxInt64/p.Price {
		return Item{}, fmt.Errorf("product[%s] x %d: %w", p.ID, quantity, ErrOverflow)
	}

	now := c.now()
	it := Item{
		ID:        validate.GenerateID(),
		CartID:    crt.ID,
		ProductID: p.ID,
		Quantity:  quantity,
		Price:     p.Price * quantity,
		Currency:  p.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, _, err := c.store.AddItem(ctx, it)
	if err != nil {
		return Item{}, err
	}
	c.invalidate(ctx, crt.ID)

	c.publish(ctx, ItemAdded{
		ID:            saved.ID,
		CartID:        saved.CartID,
		ProductID:     saved.ProductID,
		Quantity:      saved.Quantity,
		Total:         saved.Price,
		Currency:      saved.Currency,
		QuantityAdded: it.Quantity,
		TotalAdded:    it.Price,
	})

	return saved, nil
}

// RemoveItem deletes the whole item row; there is no partial decrement.
func (c *Core) RemoveItem(ctx context.Context, crt Cart, itemID string) error {
	removed, _, err := c.store.DeleteItem(ctx, crt.ID, itemID, c.now())
	if err != nil {
		return err
	}
	c.invalidate(ctx, crt.ID)

	c.publish(ctx, ItemDeleted{
		ID:        removed.ID,
		CartID:    removed.CartID,
		ProductID: removed.ProductID,
		Quantity:  removed.Quantity,
		Total:     removed.Price,
		Currency:  removed.Currency,
	})
	return nil
}

func (c *Core) Clear(ctx context.Context, crt Cart) error {
	removed, _, err := c.store.DeleteItems(ctx, crt.ID, c.now())
	if err != nil {
		return err
	}
	c.invalidate(ctx, crt.ID)

	evt := Cleared{CartID: crt.ID, Currency: crt.Currency}
	for _, it := range removed {
		evt.Quantity += it.Quantity
		evt.Total += it.Price
	}
	c.publish(ctx, evt)
	return nil
}

// invalidate also forgets any read in flight, so later callers of Show do
// not share a result loaded before the mutation.
func (c *Core) invalidate(ctx context.Context, cartID string) {
	c.sfg.Forget(cartID)
	if err := c.cache.Invalidate(ctx, cartID); err != nil {
		c.log.WithField("cart_id", cartID).Warnf("cache invalidate: %v", err)
	}
}

// publish runs after the mutation committed, so a failure is logged rather
// than returned.
func (c *Core) publish(ctx context.Context, evt events.Event) {
	if err := c.events.Publish(ctx, evt); err != nil {
		c.log.WithFields(logrus.Fields{
			"event":   evt.Name(),
			"cart_id": evt.AggregateID(),
			"message": err,
		}).Error("publishing cart event")
	}
}
