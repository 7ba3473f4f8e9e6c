package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type StripeVerifier struct {
	api *stripecl.API
}

func NewStripeVerifier(api *stripecl.API) *StripeVerifier {
	return &StripeVerifier{api: api}
}

func (s *StripeVerifier) Verify(ctx context.Context, mn MethodNew) error {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := s.api.PaymentMethods.Get(mn.StripePaymentMethodID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("stripe payment method[%s]: %w", mn.StripePaymentMethodID, ErrRejected)
		}
		return fmt.Errorf("fetching stripe payment method[%s]: %w", mn.StripePaymentMethodID, err)
	}

	if pm.ID != mn.StripePaymentMethodID {
		return fmt.Errorf("stripe answered for payment method[%s]: %w", pm.ID, ErrRejected)
	}
	return nil
}
