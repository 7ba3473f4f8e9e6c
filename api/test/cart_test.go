package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/e-commerce-cart/api/weberr"
	"github.com/irsalhamdi/e-commerce-cart/core/cart"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
)

type cartTest struct {
	*TestEnv
}

func TestCart(t *testing.T) {
	env := NewTestEnv(t, "cart_test")
	ct := &cartTest{env}
	pt := &productTest{env}

	cable := pt.createProductOK(t, product.ProductNew{ID: "cable.hdmi", Name: "HDMI cable", Price: 1500, Currency: "USD"})
	mouse := pt.createProductOK(t, product.ProductNew{Name: "Mouse", Price: 4999, Currency: "USD"})

	empty := ct.showOK(t, "")
	if empty.Quantity != 0 || empty.Total != 0 || len(empty.Items) != 0 {
		t.Fatalf("expected an empty cart, got %+v", empty)
	}

	ct.addItemOK(t, cable.ID, 2)
	it := ct.addItemOK(t, cable.ID, 3)
	if it.Quantity != 5 || it.Price != 7500 {
		t.Fatalf("expected the upsert to accumulate to 5 units / 7500, got %d / %d", it.Quantity, it.Price)
	}
	mit := ct.addItemOK(t, mouse.ID, 1)

	crt := ct.showOK(t, "")
	if crt.ID != empty.ID {
		t.Fatalf("the visitor should keep cart %s, got %s", empty.ID, crt.ID)
	}
	if crt.Quantity != 6 || crt.Subtotal != 12499 || crt.Total != 12499 {
		t.Errorf("unexpected aggregates: quantity %d subtotal %d total %d", crt.Quantity, crt.Subtotal, crt.Total)
	}
	if len(crt.Items) != 2 {
		t.Fatalf("expected two items, got %d", len(crt.Items))
	}

	ct.addItemRejected(t, "missing", 1, http.StatusNotFound, "product_not_found")
	ct.addItemRejected(t, cable.ID, 0, http.StatusBadRequest, "")

	if code := env.Do(t, http.MethodDelete, "/cart/items/"+mit.ID, nil, "", nil); code != http.StatusNoContent {
		t.Fatalf("removing item: status %d", code)
	}

	var er weberr.ErrorResponse
	if code := env.Do(t, http.MethodDelete, "/cart/items/"+mit.ID, nil, "", &er); code != http.StatusNotFound {
		t.Fatalf("removing item twice: status %d", code)
	}
	if er.Kind != "cart_item_not_found" {
		t.Errorf("expected cart_item_not_found, got %q", er.Kind)
	}

	crt = ct.showOK(t, "")
	if crt.Quantity != 5 || crt.Total != 7500 {
		t.Errorf("after removal expected 5 / 7500, got %d / %d", crt.Quantity, crt.Total)
	}

	if code := env.Do(t, http.MethodDelete, "/cart", nil, "", nil); code != http.StatusNoContent {
		t.Fatalf("clearing cart: status %d", code)
	}

	crt = ct.showOK(t, "")
	exp := cart.Cart{ID: empty.ID, Currency: "USD", Items: []cart.Item{}}
	if diff := cmp.Diff(exp, crt, cmp.FilterPath(func(p cmp.Path) bool {
		f := p.Last().String()
		return f == ".CreatedAt" || f == ".UpdatedAt"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("cleared cart mismatch (-want +got):\n%s", diff)
	}
}

func TestCartCustomer(t *testing.T) {
	env := NewTestEnv(t, "cart_customer_test")
	ct := &cartTest{env}
	pt := &productTest{env}

	const account = "acc-customer"

	p := pt.createProductOK(t, product.ProductNew{Name: "Keyboard", Price: 9000, Currency: "USD"})

	crt := ct.showOK(t, account)
	if crt.CustomerID == nil {
		t.Fatalf("expected the cart to belong to a provisioned customer, got %+v", crt)
	}

	var it cart.Item
	code := env.Do(t, http.MethodPut, "/cart/items", cart.ItemNew{ProductID: p.ID, Quantity: 1}, account, &it)
	if code != http.StatusOK {
		t.Fatalf("adding item: status %d", code)
	}
	if it.CartID != crt.ID {
		t.Errorf("item added to cart %s, expected %s", it.CartID, crt.ID)
	}

	// Same account from another browser finds the same customer and cart.
	phone := &cartTest{env.Visitor(t, "cart-test/phone")}
	other := phone.showOK(t, account)
	if other.ID != crt.ID || other.CustomerID == nil || *other.CustomerID != *crt.CustomerID {
		t.Fatalf("expected cart %s of customer %s, got %+v", crt.ID, *crt.CustomerID, other)
	}
	if other.Quantity != 1 {
		t.Errorf("expected the keyboard on the other device, got quantity %d", other.Quantity)
	}

	var n int
	if err := env.DB.GetContext(context.Background(), &n, `SELECT count(*) FROM customers WHERE account_id = $1`, account); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected one customer row for %s, got %d", account, n)
	}
}

func (ct *cartTest) showOK(t *testing.T, account string) cart.Cart {
	t.Helper()

	var crt cart.Cart
	if code := ct.Do(t, http.MethodGet, "/cart", nil, account, &crt); code != http.StatusOK {
		t.Fatalf("showing cart: status %d", code)
	}
	return crt
}

func (ct *cartTest) addItemOK(t *testing.T, productID string, qty int64) cart.Item {
	t.Helper()

	var it cart.Item
	code := ct.Do(t, http.MethodPut, "/cart/items", cart.ItemNew{ProductID: productID, Quantity: qty}, "", &it)
	if code != http.StatusOK {
		t.Fatalf("adding %d x %s: status %d", qty, productID, code)
	}
	return it
}

func (ct *cartTest) addItemRejected(t *testing.T, productID string, qty int64, status int, kind string) {
	t.Helper()

	var er weberr.ErrorResponse
	code := ct.Do(t, http.MethodPut, "/cart/items", cart.ItemNew{ProductID: productID, Quantity: qty}, "", &er)
	if code != status {
		t.Fatalf("adding %d x %s: expected status %d, got %d", qty, productID, status, code)
	}
	if er.Kind != kind {
		t.Errorf("expected kind %q, got %q", kind, er.Kind)
	}
}
