package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/jmoiron/sqlx"
)

const openAccountKey = "checkouts_open_account_key"

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) QueryOpen(ctx context.Context, accountID string) (Checkout, error) {
	const q = `
	SELECT *
	FROM checkouts
	WHERE account_id = $1 AND status = $2`

	var r row
	if err := sqlx.GetContext(ctx, s.db, &r, q, accountID, Open); err != nil {
		if database.IsNoRows(err) {
			return Checkout{}, ErrNotFound
		}
		return Checkout{}, fmt.Errorf("selecting open checkout of account[%s]: %w", accountID, err)
	}

	items, err := s.queryItems(ctx, s.db, r.ID)
	if err != nil {
		return Checkout{}, err
	}
	return fromRows(r, items), nil
}

// Create stores the checkout and its lines atomically. A second open
// checkout for the same account fails with ErrAlreadyInitialized.
func (s *Store) Create(ctx context.Context, c Checkout) error {
	const qc = `
	INSERT INTO checkouts
		(checkout_id, reference, account_id, processor, payment_method_id, status,
		 currency, subtotal, discount, tax, total, created_at, updated_at)
	VALUES
		(:checkout_id, :reference, :account_id, :processor, :payment_method_id, :status,
		 :currency, :subtotal, :discount, :tax, :total, :created_at, :updated_at)`

	const qi = `
	INSERT INTO checkout_items
		(checkout_id, product_id, quantity, subtotal, discount, tax, total, position)
	VALUES
		(:checkout_id, :product_id, :quantity, :subtotal, :discount, :tax, :total, :position)`

	r, items := toRows(c)

	err := database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, qc, r); err != nil {
			if name, ok := database.UniqueConstraint(err); ok && name == openAccountKey {
				return ErrAlreadyInitialized
			}
			return fmt.Errorf("inserting checkout[%s]: %w", c.ID, err)
		}

		for _, it := range items {
			if _, err := sqlx.NamedExecContext(ctx, tx, qi, it); err != nil {
				return fmt.Errorf("inserting checkout[%s] line %d: %w", c.ID, it.Position, err)
			}
		}
		return nil
	})
	return err
}

func (s *Store) Void(ctx context.Context, accountID string, now time.Time) (Checkout, error) {
	const q = `
	UPDATE checkouts
	SET status = $3, updated_at = $4
	WHERE account_id = $1 AND status = $2
	RETURNING *`

	var r row
	if err := sqlx.GetContext(ctx, s.db, &r, q, accountID, Open, Voided, now); err != nil {
		if database.IsNoRows(err) {
			return Checkout{}, ErrNotFound
		}
		return Checkout{}, fmt.Errorf("voiding checkout of account[%s]: %w", accountID, err)
	}

	items, err := s.queryItems(ctx, s.db, r.ID)
	if err != nil {
		return Checkout{}, err
	}
	return fromRows(r, items), nil
}

func (s *Store) queryItems(ctx context.Context, q sqlx.QueryerContext, checkoutID string) ([]itemRow, error) {
	const sel = `
	SELECT *
	FROM checkout_items
	WHERE checkout_id = $1
	ORDER BY position`

	items := []itemRow{}
	if err := sqlx.SelectContext(ctx, q, &items, sel, checkoutID); err != nil {
		return nil, fmt.Errorf("selecting items of checkout[%s]: %w", checkoutID, err)
	}
	return items, nil
}

func toRows(c Checkout) (row, []itemRow) {
	r := row{
		ID:              c.ID,
		Reference:       c.Reference,
		AccountID:       c.AccountID,
		Processor:       c.Processor,
		PaymentMethodID: c.PaymentMethodID,
		Status:          c.Status,
		Currency:        c.Currency,
		Subtotal:        c.Subtotal,
		Discount:        c.Discount,
		Tax:             c.Tax,
		Total:           c.Total,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}

	items := make([]itemRow, len(c.Items))
	for i, it := range c.Items {
		items[i] = itemRow{
			CheckoutID: c.ID,
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Subtotal:   it.Subtotal,
			Discount:   it.Discount,
			Tax:        it.Tax,
			Total:      it.Total,
			Position:   i,
		}
	}
	return r, items
}

func fromRows(r row, items []itemRow) Checkout {
	c := Checkout{
		ID:              r.ID,
		Reference:       r.Reference,
		AccountID:       r.AccountID,
		Processor:       r.Processor,
		PaymentMethodID: r.PaymentMethodID,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Summary: pricing.Summary{
			Currency: r.Currency,
			Subtotal: r.Subtotal,
			Discount: r.Discount,
			Tax:      r.Tax,
			Total:    r.Total,
			Items:    make([]pricing.Item, len(items)),
		},
	}

	for i, it := range items {
		c.Items[i] = pricing.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
			Discount:  it.Discount,
			Tax:       it.Tax,
			Total:     it.Total,
		}
	}
	return c
}
