package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/plutov/paypal/v4"
)

// PaypalVerifier checks that a vaulted card exists in the merchant's paypal
// vault.
type PaypalVerifier struct {
	client *paypal.Client
}

func NewPaypalVerifier(client *paypal.Client) *PaypalVerifier {
	return &PaypalVerifier{client: client}
}

func (p *PaypalVerifier) Verify(ctx context.Context, mn MethodNew) error {
	cc, err := p.client.GetCreditCard(ctx, mn.PaypalVaultID)
	if err != nil {
		var perr *paypal.ErrorResponse
		if errors.As(err, &perr) && perr.Response != nil && perr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("paypal vault card[%s]: %w", mn.PaypalVaultID, ErrRejected)
		}
		return fmt.Errorf("fetching paypal vault card[%s]: %w", mn.PaypalVaultID, err)
	}

	if cc.ID != mn.PaypalVaultID {
		return fmt.Errorf("paypal answered for vault card[%s]: %w", cc.ID, ErrRejected)
	}
	return nil
}
