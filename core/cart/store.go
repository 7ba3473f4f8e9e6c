package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/jmoiron/sqlx"
)

// Store persists carts in postgres. Every item mutation locks the cart row
// and recomputes its totals from cart_items in the same transaction.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) QueryByID(ctx context.Context, cartID string) (Cart, error) {
	return s.queryOne(ctx, `SELECT * FROM carts WHERE cart_id = $1`, cartID)
}

func (s *Store) QueryByCustomer(ctx context.Context, customerID string) (Cart, error) {
	return s.queryOne(ctx, `SELECT * FROM carts WHERE customer_id = $1`, customerID)
}

func (s *Store) QueryByFingerprint(ctx context.Context, fingerprint string) (Cart, error) {
	return s.queryOne(ctx, `SELECT * FROM carts WHERE fingerprint = $1`, fingerprint)
}

func (s *Store) queryOne(ctx context.Context, q string, arg string) (Cart, error) {
	var c Cart
	if err := sqlx.GetContext(ctx, s.db, &c, q, arg); err != nil {
		if database.IsNoRows(err) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("selecting cart: %w", err)
	}
	return c, nil
}

// Create inserts c unless a cart already holds its customer or fingerprint,
// in which case it reports false.
func (s *Store) Create(ctx context.Context, c Cart) (bool, error) {
	const q = `
	INSERT INTO carts
		(cart_id, customer_id, fingerprint, quantity, subtotal, total, currency, created_at, updated_at)
	VALUES
		(:cart_id, :customer_id, :fingerprint, :quantity, :subtotal, :total, :currency, :created_at, :updated_at)
	ON CONFLICT DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, s.db, q, c)
	if err != nil {
		return false, fmt.Errorf("inserting cart: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting cart: %w", err)
	}
	return n == 1, nil
}

func (s *Store) QueryItems(ctx context.Context, cartID string) ([]Item, error) {
	const q = `
	SELECT *
	FROM cart_items
	WHERE cart_id = $1
	ORDER BY created_at, cart_item_id`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, s.db, &items, q, cartID); err != nil {
		return nil, fmt.Errorf("selecting items of cart[%s]: %w", cartID, err)
	}
	return items, nil
}

// AddItem inserts it or, when the cart already holds the product, adds its
// quantity and price to the existing row.
func (s *Store) AddItem(ctx context.Context, it Item) (Item, Cart, error) {
	const q = `
	INSERT INTO cart_items
		(cart_item_id, cart_id, product_id, quantity, price, currency, created_at, updated_at)
	VALUES
		(:cart_item_id, :cart_id, :product_id, :quantity, :price, :currency, :created_at, :updated_at)
	ON CONFLICT (cart_id, product_id) DO UPDATE SET
		quantity   = cart_items.quantity + EXCLUDED.quantity,
		price      = cart_items.price + EXCLUDED.price,
		updated_at = EXCLUDED.updated_at
	RETURNING *`

	var saved Item
	var crt Cart
	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, it.CartID); err != nil {
			return err
		}

		query, args, err := sqlx.Named(q, it)
		if err != nil {
			return fmt.Errorf("binding item: %w", err)
		}
		if err := sqlx.GetContext(ctx, tx, &saved, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
			return fmt.Errorf("upserting item: %w", err)
		}

		crt, err = resum(ctx, tx, it.CartID, it.UpdatedAt)
		return err
	})
	if err != nil {
		if database.IsOutOfRange(err) {
			err = ErrOverflow
		}
		return Item{}, Cart{}, fmt.Errorf("adding product[%s] to cart[%s]: %w", it.ProductID, it.CartID, err)
	}
	return saved, crt, nil
}

func (s *Store) DeleteItem(ctx context.Context, cartID string, itemID string, now time.Time) (Item, Cart, error) {
	const q = `
	DELETE FROM cart_items
	WHERE cart_item_id = $1 AND cart_id = $2
	RETURNING *`

	var removed Item
	var crt Cart
	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, cartID); err != nil {
			return err
		}

		if err := sqlx.GetContext(ctx, tx, &removed, q, itemID, cartID); err != nil {
			if database.IsNoRows(err) {
				return ErrItemNotFound
			}
			return fmt.Errorf("deleting item: %w", err)
		}

		var err error
		crt, err = resum(ctx, tx, cartID, now)
		return err
	})
	if err != nil {
		return Item{}, Cart{}, fmt.Errorf("removing item[%s] from cart[%s]: %w", itemID, cartID, err)
	}
	return removed, crt, nil
}

func (s *Store) DeleteItems(ctx context.Context, cartID string, now time.Time) ([]Item, Cart, error) {
	const q = `
	DELETE FROM cart_items
	WHERE cart_id = $1
	RETURNING *`

	removed := []Item{}
	var crt Cart
	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, cartID); err != nil {
			return err
		}

		if err := sqlx.SelectContext(ctx, tx, &removed, q, cartID); err != nil {
			return fmt.Errorf("deleting items: %w", err)
		}

		var err error
		crt, err = resum(ctx, tx, cartID, now)
		return err
	})
	if err != nil {
		return nil, Cart{}, fmt.Errorf("clearing cart[%s]: %w", cartID, err)
	}
	return removed, crt, nil
}

func lock(ctx context.Context, tx sqlx.ExtContext, cartID string) error {
	var id string
	err := sqlx.GetContext(ctx, tx, &id, `SELECT cart_id FROM carts WHERE cart_id = $1 FOR UPDATE`, cartID)
	if err != nil {
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("locking cart: %w", err)
	}
	return nil
}

func resum(ctx context.Context, tx sqlx.ExtContext, cartID string, now time.Time) (Cart, error) {
	const q = `
	UPDATE carts SET
		quantity   = t.quantity,
		subtotal   = t.price,
		total      = t.price,
		updated_at = $2
	FROM (
		SELECT COALESCE(SUM(quantity), 0) AS quantity, COALESCE(SUM(price), 0) AS price
		FROM cart_items
		WHERE cart_id = $1
	) AS t
	WHERE carts.cart_id = $1
	RETURNING carts.*`

	var c Cart
	if err := sqlx.GetContext(ctx, tx, &c, q, cartID, now); err != nil {
		return Cart{}, fmt.Errorf("recomputing cart totals: %w", err)
	}
	return c, nil
}
