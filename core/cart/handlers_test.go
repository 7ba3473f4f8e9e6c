package cart

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
)

func TestItemErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("adding: %w", ErrOverflow), http.StatusBadRequest, "amount_overflow"},
		{ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{fmt.Errorf("fetching product: %w", product.ErrNotFound), http.StatusNotFound, "product_not_found"},
		{ErrItemNotFound, http.StatusNotFound, "cart_item_not_found"},
		{ErrCurrencyMismatch, http.StatusUnprocessableEntity, "currency_mismatch"},
	}

	for _, tt := range tests {
		err := itemError(tt.err, weberr.WithFields(map[string]interface{}{"cart_id": "cart-1"}))

		body, status, ok := weberr.Response(err)
		if !ok {
			t.Fatalf("%v: expected a client error", tt.err)
		}
		if status != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, status)
		}
		if er := body.(*weberr.ErrorResponse); er.Kind != tt.kind {
			t.Errorf("%v: expected kind %q, got %q", tt.err, tt.kind, er.Kind)
		}
		if fields, _ := weberr.Fields(err); fields["cart_id"] != "cart-1" {
			t.Errorf("%v: expected the cart field, got %v", tt.err, fields)
		}
	}
}
