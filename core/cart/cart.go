package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("cart not found")
	ErrItemNotFound        = errors.New("cart item not found")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrCurrencyMismatch    = errors.New("product currency differs from cart currency")
	ErrFingerprintRequired = errors.New("visitor fingerprint is required")
	ErrOverflow            = errors.New("cart amount overflows minor units")
)

// Cart holds a visitor's selection. Quantity, Subtotal and Total are always
// the sums over the cart's items, recomputed with every item mutation.
type Cart struct {
	ID          string    `json:"id" db:"cart_id"`
	CustomerID  *string   `json:"customerId" db:"customer_id"`
	Fingerprint string    `json:"-" db:"fingerprint"`
	Quantity    int64     `json:"quantity" db:"quantity"`
	Subtotal    int64     `json:"subtotal" db:"subtotal"`
	Total       int64     `json:"total" db:"total"`
	Currency    string    `json:"currency" db:"currency"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	Items       []Item    `json:"items" db:"-"`
}

// Item is unique per (CartID, ProductID); Price is the accumulated price of
// Quantity units.
type Item struct {
	ID        string    `json:"id" db:"cart_item_id"`
	CartID    string    `json:"cartId" db:"cart_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int64     `json:"quantity" db:"quantity"`
	Price     int64     `json:"price" db:"price"`
	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ItemNew struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gte=1"`
}
