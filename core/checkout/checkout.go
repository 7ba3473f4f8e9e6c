package checkout

import (
	"errors"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/core/pricing"
)

var (
	ErrNotFound                 = errors.New("checkout not found")
	ErrAlreadyInitialized       = errors.New("checkout already initialized")
	ErrNoPaymentMethod          = errors.New("no payment method provided")
	ErrPaymentMethodUnavailable = errors.New("payment method unavailable")
	ErrEmpty                    = errors.New("no items to checkout")
	ErrCurrencyMismatch         = errors.New("product currency differs from checkout currency")
)

type Status string

const (
	Open      Status = "open"
	Voided    Status = "voided"
	Completed Status = "completed"
)

// Checkout is the persisted form of an initialized checkout summary.
type Checkout struct {
	ID              string    `json:"id" db:"checkout_id"`
	Reference       string    `json:"reference" db:"reference"`
	AccountID       string    `json:"accountId" db:"account_id"`
	Processor       string    `json:"processor" db:"processor"`
	PaymentMethodID string    `json:"paymentMethodId" db:"payment_method_id"`
	Status          Status    `json:"status" db:"status"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`

	pricing.Summary
}

// row flattens the summary totals for the checkouts table.
type row struct {
	ID              string    `db:"checkout_id"`
	Reference       string    `db:"reference"`
	AccountID       string    `db:"account_id"`
	Processor       string    `db:"processor"`
	PaymentMethodID string    `db:"payment_method_id"`
	Status          Status    `db:"status"`
	Currency        string    `db:"currency"`
	Subtotal        int64     `db:"subtotal"`
	Discount        int64     `db:"discount"`
	Tax             int64     `db:"tax"`
	Total           int64     `db:"total"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type itemRow struct {
	CheckoutID string `db:"checkout_id"`
	ProductID  string `db:"product_id"`
	Quantity   int64  `db:"quantity"`
	Subtotal   int64  `db:"subtotal"`
	Discount   int64  `db:"discount"`
	Tax        int64  `db:"tax"`
	Total      int64  `db:"total"`
	Position   int    `db:"position"`
}

type LineNew struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gte=1"`
}

// CheckoutNew is the initialization request. PaymentMethod is keyed by
// processor id; the value holds processor specific fields and may be empty.
type CheckoutNew struct {
	Items         []LineNew                    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod map[string]map[string]string `json:"paymentMethod"`
}
