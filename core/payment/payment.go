// Package payment keeps the payment methods customers registered with a
// payment processor ahead of checkout.
package payment

import (
	"errors"
	"time"
)

const (
	ProcessorStripe = "stripe"
	ProcessorPaypal = "paypal"

	// FieldStripePaymentMethodID narrows a stripe lookup to one card.
	FieldStripePaymentMethodID = "stripePaymentMethodId"
	// FieldPaypalVaultID narrows a paypal lookup to one vaulted card.
	FieldPaypalVaultID = "paypalVaultId"
)

var (
	ErrNotFound         = errors.New("payment method not found")
	ErrUnknownProcessor = errors.New("payment processor is not configured")
	ErrMissingField     = errors.New("payment method is missing a processor field")
	ErrDuplicate        = errors.New("payment method already registered")
	ErrRejected         = errors.New("payment processor rejected the payment method")
)

type Method struct {
	ID                    string    `json:"id" db:"payment_method_id"`
	AccountID             string    `json:"accountId" db:"account_id"`
	Processor             string    `json:"processor" db:"processor"`
	StripePaymentMethodID *string   `json:"stripePaymentMethodId,omitempty" db:"stripe_payment_method_id"`
	PaypalVaultID         *string   `json:"paypalVaultId,omitempty" db:"paypal_vault_id"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
}

type MethodNew struct {
	Processor             string `json:"processor" validate:"required"`
	StripePaymentMethodID string `json:"stripePaymentMethodId" validate:"omitempty,startswith=pm_"`
	PaypalVaultID         string `json:"paypalVaultId" validate:"omitempty,startswith=CARD-"`
}

// refFields names, per processor, the field that identifies one method.
var refFields = map[string]string{
	ProcessorStripe: FieldStripePaymentMethodID,
	ProcessorPaypal: FieldPaypalVaultID,
}
