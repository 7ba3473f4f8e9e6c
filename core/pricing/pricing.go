// Package pricing turns requested quantities and authoritative product prices
// into priced checkout lines. Every amount is an integer in minor units.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/irsalhamdi/e-commerce-cart/core/money"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidRate     = errors.New("rate must be between 0 and 1")
	ErrOverflow        = errors.New("amount overflows minor units")
)

// Engine prices checkout lines.
//
// With TaxInTotal unset the line total is subtotal - discount and the tax
// bucket is informational only. That mirrors the totals produced by the
// storefront so far; set TaxInTotal to add the tax on top.
type Engine struct {
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	TaxInTotal   bool
}

func NewEngine(taxRate string, discountRate string, taxInTotal bool) (Engine, error) {
	tax, err := parseRate(taxRate)
	if err != nil {
		return Engine{}, fmt.Errorf("tax rate: %w", err)
	}

	discount, err := parseRate(discountRate)
	if err != nil {
		return Engine{}, fmt.Errorf("discount rate: %w", err)
	}

	return Engine{TaxRate: tax, DiscountRate: discount, TaxInTotal: taxInTotal}, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidRate, r)
	}
	return r, nil
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	Discount  int64  `json:"discount"`
	Tax       int64  `json:"tax"`
	Total     int64  `json:"total"`
}

type Summary struct {
	Items    []Item `json:"items"`
	Currency string `json:"currency"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Tax      int64  `json:"tax"`
	Total    int64  `json:"total"`
}

func (e Engine) PriceItem(p product.Product, quantity int64) (Item, error) {
	if quantity < 1 {
		return Item{}, fmt.Errorf("product[%s]: %w", p.ID, ErrInvalidQuantity)
	}
	if p.Price > 0 && quantity > math.MaxInt64/p.Price {
		return Item{}, fmt.Errorf("product[%s] x %d: %w", p.ID, quantity, ErrOverflow)
	}

	subtotal := p.Price * quantity

	tax, err := money.Split(subtotal, e.TaxRate)
	if err != nil {
		return Item{}, fmt.Errorf("allocating tax: %w", err)
	}

	discount, err := money.Split(subtotal, e.DiscountRate)
	if err != nil {
		return Item{}, fmt.Errorf("allocating discount: %w", err)
	}

	total := subtotal - discount
	if e.TaxInTotal {
		var ok bool
		if total, ok = add(total, tax); !ok {
			return Item{}, fmt.Errorf("product[%s] x %d: %w", p.ID, quantity, ErrOverflow)
		}
	}

	return Item{
		ProductID: p.ID,
		Quantity:  quantity,
		Subtotal:  subtotal,
		Discount:  discount,
		Tax:       tax,
		Total:     total,
	}, nil
}

// Price resolves productID in products before pricing it.
func (e Engine) Price(products map[string]product.Product, productID string, quantity int64) (Item, error) {
	p, ok := products[productID]
	if !ok {
		return Item{}, fmt.Errorf("product[%s]: %w", productID, product.ErrNotFound)
	}
	return e.PriceItem(p, quantity)
}

// Aggregate sums the priced lines of a single currency checkout. Sums that
// leave the int64 range fail with ErrOverflow.
func Aggregate(currency string, items []Item) (Summary, error) {
	s := Summary{
		Items:    items,
		Currency: currency,
	}

	for _, it := range items {
		var ok [4]bool
		s.Subtotal, ok[0] = add(s.Subtotal, it.Subtotal)
		s.Discount, ok[1] = add(s.Discount, it.Discount)
		s.Tax, ok[2] = add(s.Tax, it.Tax)
		s.Total, ok[3] = add(s.Total, it.Total)
		if !ok[0] || !ok[1] || !ok[2] || !ok[3] {
			return Summary{}, fmt.Errorf("summing %d lines: %w", len(items), ErrOverflow)
		}
	}
	return s, nil
}

// add reports false when a+b leaves the int64 range.
func add(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
