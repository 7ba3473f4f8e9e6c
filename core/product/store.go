package product

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, p Product) error {
	const q = `
	INSERT INTO products
		(product_id, name, price, currency, created_at, updated_at, version)
	VALUES
		(:product_id, :name, :price, :currency, :created_at, :updated_at, :version)`

	if _, err := sqlx.NamedExecContext(ctx, s.db, q, p); err != nil {
		return fmt.Errorf("inserting product[%s]: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, id string) (Product, error) {
	const q = `
	SELECT *
	FROM products
	WHERE product_id = $1`

	var p Product
	if err := sqlx.GetContext(ctx, s.db, &p, q, id); err != nil {
		if database.IsNoRows(err) {
			return Product{}, fmt.Errorf("product[%s]: %w", id, ErrNotFound)
		}
		return Product{}, fmt.Errorf("selecting product[%s]: %w", id, err)
	}
	return p, nil
}

// FetchByIDs returns the products found among ids; missing ids are skipped.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	q, args, err := sqlx.In(`
	SELECT *
	FROM products
	WHERE product_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building products query: %w", err)
	}

	ps := []Product{}
	if err := sqlx.SelectContext(ctx, s.db, &ps, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}
	return ps, nil
}

func (s *Store) List(ctx context.Context, page int, rows int) ([]Product, error) {
	const q = `
	SELECT *
	FROM products
	ORDER BY product_id
	OFFSET $1 ROWS FETCH NEXT $2 ROWS ONLY`

	offset := (page - 1) * rows
	ps := []Product{}
	if err := sqlx.SelectContext(ctx, s.db, &ps, q, offset, rows); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}
	return ps, nil
}
