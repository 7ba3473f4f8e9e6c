package cart

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/irsalhamdi/e-commerce-cart/core/customer"
	"github.com/irsalhamdi/e-commerce-cart/core/events"
	"github.com/irsalhamdi/e-commerce-cart/core/product"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// fakes

type memStore struct {
	mu    sync.Mutex
	carts map[string]Cart
	items map[string]Item
}

func newMemStore() *memStore {
	return &memStore{
		carts: make(map[string]Cart),
		items: make(map[string]Item),
	}
}

func (m *memStore) QueryByID(ctx context.Context, cartID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) QueryByCustomer(ctx context.Context, customerID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.CustomerID != nil && *c.CustomerID == customerID {
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *memStore) QueryByFingerprint(ctx context.Context, fingerprint string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.carts {
		if c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *memStore) Create(ctx context.Context, c Cart) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.carts {
		if existing.Fingerprint == c.Fingerprint {
			return false, nil
		}
		if c.CustomerID != nil && existing.CustomerID != nil && *existing.CustomerID == *c.CustomerID {
			return false, nil
		}
	}
	m.carts[c.ID] = c
	return true, nil
}

func (m *memStore) QueryItems(ctx context.Context, cartID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []Item{}
	for _, it := range m.items {
		if it.CartID == cartID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (m *memStore) AddItem(ctx context.Context, it Item) (Item, Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[it.CartID]; !ok {
		return Item{}, Cart{}, ErrNotFound
	}

	// BIGINT columns reject the sums, as postgres does with 22003.
	var total int64
	for _, existing := range m.items {
		if existing.CartID == it.CartID {
			total += existing.Price
		}
	}
	if it.Price > math.MaxInt64-total {
		return Item{}, Cart{}, ErrOverflow
	}

	for id, existing := range m.items {
		if existing.CartID == it.CartID && existing.ProductID == it.ProductID {
			if it.Quantity > math.MaxInt64-existing.Quantity {
				return Item{}, Cart{}, ErrOverflow
			}
			existing.Quantity += it.Quantity
			existing.Price += it.Price
			existing.UpdatedAt = it.UpdatedAt
			m.items[id] = existing
			return existing, m.resum(it.CartID, it.UpdatedAt), nil
		}
	}

	m.items[it.ID] = it
	return it, m.resum(it.CartID, it.UpdatedAt), nil
}

func (m *memStore) DeleteItem(ctx context.Context, cartID string, itemID string, now time.Time) (Item, Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return Item{}, Cart{}, ErrItemNotFound
	}
	delete(m.items, itemID)
	return it, m.resum(cartID, now), nil
}

func (m *memStore) DeleteItems(ctx context.Context, cartID string, now time.Time) ([]Item, Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []Item
	for id, it := range m.items {
		if it.CartID == cartID {
			removed = append(removed, it)
			delete(m.items, id)
		}
	}
	return removed, m.resum(cartID, now), nil
}

func (m *memStore) resum(cartID string, now time.Time) Cart {
	c := m.carts[cartID]
	c.Quantity, c.Subtotal, c.Total = 0, 0, 0
	for _, it := range m.items {
		if it.CartID == cartID {
			c.Quantity += it.Quantity
			c.Subtotal += it.Price
			c.Total += it.Price
		}
	}
	c.UpdatedAt = now
	m.carts[cartID] = c
	return c
}

type products map[string]product.Product

func (p products) Fetch(ctx context.Context, id string) (product.Product, error) {
	pr, ok := p[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return pr, nil
}

// customers provisions "cus-<account>" for accounts it has not seen.
type customers struct {
	mu        sync.Mutex
	byAccount map[string]customer.Customer
	created   int
}

func newCustomers(seed ...customer.Customer) *customers {
	c := &customers{byAccount: make(map[string]customer.Customer)}
	for _, cus := range seed {
		c.byAccount[cus.AccountID] = cus
	}
	return c
}

func (c *customers) Ensure(ctx context.Context, accountID string) (customer.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cus, ok := c.byAccount[accountID]; ok {
		return cus, nil
	}
	cus := customer.Customer{ID: "cus-" + accountID, AccountID: accountID}
	c.byAccount[accountID] = cus
	c.created++
	return cus, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

// =============================================================================

type cartTest struct {
	core  *Core
	store *memStore
	rec   *recorder
}

func newCartTest(t *testing.T) *cartTest {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemStore()
	rec := &recorder{}

	core := NewCore(Config{
		Log:   log,
		Store: store,
		Products: products{
			"gpu.nvidia.rtx.4090": {ID: "gpu.nvidia.rtx.4090", Price: 1000000, Currency: "USD"},
			"cable.hdmi":          {ID: "cable.hdmi", Price: 1500, Currency: "USD"},
			"mug.eur":             {ID: "mug.eur", Price: 900, Currency: "EUR"},
		},
		Customers: newCustomers(customer.Customer{ID: "cus-1", AccountID: "acc-1"}),
		Events:   rec,
		Currency: "USD",
	})

	return &cartTest{core: core, store: store, rec: rec}
}

func TestResolveIsIdempotent(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	first, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the same cart, got %s and %s", first.ID, second.ID)
	}
	if len(ct.store.carts) != 1 {
		t.Fatalf("expected one cart row, got %d", len(ct.store.carts))
	}
	if first.CustomerID != nil {
		t.Fatalf("guest cart should have no customer, got %v", *first.CustomerID)
	}
}

func TestResolveConcurrentCreatesOneCart(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			crt, err := ct.core.Resolve(ctx, nil, "fp-race")
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = crt.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected every request to get cart %s, got %v", ids[0], ids)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()
	acc := &claims.Claims{AccountID: "acc-1", Role: claims.RoleCustomer}

	customerCart, err := ct.core.Resolve(ctx, acc, "fp-laptop")
	if err != nil {
		t.Fatal(err)
	}
	if customerCart.CustomerID == nil || *customerCart.CustomerID != "cus-1" {
		t.Fatalf("expected cart bound to cus-1, got %+v", customerCart)
	}

	// Same account from another browser: the customer cart wins.
	got, err := ct.core.Resolve(ctx, acc, "fp-phone")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != customerCart.ID {
		t.Fatalf("expected customer cart %s, got %s", customerCart.ID, got.ID)
	}

	// An account with no cart yet picks up the fingerprint's cart.
	guestCart, err := ct.core.Resolve(ctx, nil, "fp-tablet")
	if err != nil {
		t.Fatal(err)
	}
	got, err = ct.core.Resolve(ctx, &claims.Claims{AccountID: "acc-unknown"}, "fp-tablet")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != guestCart.ID {
		t.Fatalf("expected fingerprint cart %s, got %s", guestCart.ID, got.ID)
	}
}

func TestResolveProvisionsCustomer(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()
	acc := &claims.Claims{AccountID: "acc-new", Role: claims.RoleCustomer}

	first, err := ct.core.Resolve(ctx, acc, "fp-laptop")
	if err != nil {
		t.Fatal(err)
	}
	if first.CustomerID == nil || *first.CustomerID != "cus-acc-new" {
		t.Fatalf("expected cart bound to a provisioned customer, got %+v", first)
	}

	second, err := ct.core.Resolve(ctx, acc, "fp-phone")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same customer cart %s from another device, got %s", first.ID, second.ID)
	}

	cs := ct.core.customers.(*customers)
	if cs.created != 1 {
		t.Fatalf("expected one provisioned customer, got %d", cs.created)
	}
}

func TestResolveRequiresFingerprint(t *testing.T) {
	ct := newCartTest(t)

	if _, err := ct.core.Resolve(context.Background(), nil, ""); !errors.Is(err, ErrFingerprintRequired) {
		t.Fatalf("expected ErrFingerprintRequired, got %v", err)
	}
}

func TestAddItemAccumulates(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	first, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 3)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the same item row, got %s and %s", first.ID, second.ID)
	}
	if second.Quantity != 5 || second.Price != 7500 {
		t.Fatalf("expected quantity 5 and price 7500, got %d and %d", second.Quantity, second.Price)
	}
	if len(ct.store.items) != 1 {
		t.Fatalf("expected one item row, got %d", len(ct.store.items))
	}

	want := ItemAdded{
		ID:            second.ID,
		CartID:        crt.ID,
		ProductID:     "cable.hdmi",
		Quantity:      5,
		Total:         7500,
		Currency:      "USD",
		QuantityAdded: 3,
		TotalAdded:    4500,
	}
	if diff := cmp.Diff(want, ct.rec.last()); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}

	got, err := ct.core.Show(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 5 || got.Subtotal != 7500 || got.Total != 7500 {
		t.Fatalf("cart totals not derived from items: %+v", got)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected one item in the cart, got %d", len(got.Items))
	}
}

func TestAddItemConcurrentTotals(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := ct.store.QueryByID(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 50 || got.Total != 50*1500 {
		t.Fatalf("expected 50 units worth %d, got %+v", 50*1500, got)
	}
}

func TestAddItemRejects(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ct.core.AddItem(ctx, crt, "cpu.amd.7950x", 1); !errors.Is(err, product.ErrNotFound) {
		t.Errorf("expected product.ErrNotFound, got %v", err)
	}
	if _, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := ct.core.AddItem(ctx, crt, "mug.eur", 1); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected ErrCurrencyMismatch, got %v", err)
	}
	if len(ct.rec.events) != 0 {
		t.Errorf("rejected additions must not publish events, got %d", len(ct.rec.events))
	}
}

func TestAddItemOverflow(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", math.MaxInt64/1000000+1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for the line price, got %v", err)
	}

	half := int64(math.MaxInt64/1000000) / 2
	if _, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", half); err != nil {
		t.Fatal(err)
	}
	if _, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", half); err != nil {
		t.Fatal(err)
	}
	if _, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", half); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow for the accumulated total, got %v", err)
	}

	got, err := ct.store.QueryByID(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 2*half || got.Total != 2*half*1000000 {
		t.Fatalf("rejected addition must leave the cart untouched, got %+v", got)
	}
	if len(ct.rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(ct.rec.events))
	}
}

func TestRemoveItemDeletesWholeRow(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, err := ct.core.Resolve(ctx, nil, "fp-1")
	if err != nil {
		t.Fatal(err)
	}

	it, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := ct.core.RemoveItem(ctx, crt, it.ID); err != nil {
		t.Fatal(err)
	}

	evt, ok := ct.rec.last().(ItemDeleted)
	if !ok {
		t.Fatalf("expected ItemDeleted, got %T", ct.rec.last())
	}
	if evt.Quantity != 3 || evt.Total != 3000000 {
		t.Fatalf("expected the full removed amounts, got %+v", evt)
	}

	got, err := ct.store.QueryByID(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 0 || got.Total != 0 {
		t.Fatalf("expected an empty cart, got %+v", got)
	}

	if err := ct.core.RemoveItem(ctx, crt, it.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestRemoveItemOfAnotherCart(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	mine, _ := ct.core.Resolve(ctx, nil, "fp-1")
	theirs, _ := ct.core.Resolve(ctx, nil, "fp-2")

	it, err := ct.core.AddItem(ctx, theirs, "cable.hdmi", 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := ct.core.RemoveItem(ctx, mine, it.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	ct := newCartTest(t)
	ctx := context.Background()

	crt, _ := ct.core.Resolve(ctx, nil, "fp-1")
	if _, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := ct.core.AddItem(ctx, crt, "gpu.nvidia.rtx.4090", 1); err != nil {
		t.Fatal(err)
	}

	if err := ct.core.Clear(ctx, crt); err != nil {
		t.Fatal(err)
	}

	want := Cleared{CartID: crt.ID, Quantity: 3, Total: 1003000, Currency: "USD"}
	if diff := cmp.Diff(want, ct.rec.last()); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}

	got, err := ct.core.Show(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 0 || got.Total != 0 {
		t.Fatalf("expected an empty cart, got %+v", got)
	}
}

type mapCache struct {
	mu    sync.Mutex
	carts map[string]Cart
	gens  map[string]int64
	gets  int
}

func newMapCache() *mapCache {
	return &mapCache{carts: make(map[string]Cart), gens: make(map[string]int64)}
}

func (m *mapCache) Get(ctx context.Context, cartID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.carts[cartID]
	if !ok {
		return Cart{}, ErrCacheMiss
	}
	return c, nil
}

func (m *mapCache) Generation(ctx context.Context, cartID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[cartID], nil
}

func (m *mapCache) Set(ctx context.Context, c Cart, gen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[c.ID] != gen {
		return ErrStale
	}
	m.carts[c.ID] = c
	return nil
}

func (m *mapCache) Invalidate(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[cartID]++
	delete(m.carts, cartID)
	return nil
}

func TestShowCachesAndInvalidates(t *testing.T) {
	ct := newCartTest(t)
	cache := newMapCache()
	ct.core.cache = cache
	ctx := context.Background()

	crt, _ := ct.core.Resolve(ctx, nil, "fp-1")
	if _, err := ct.core.Show(ctx, crt.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.carts[crt.ID]; !ok {
		t.Fatal("expected the cart to be cached after show")
	}

	if _, err := ct.core.AddItem(ctx, crt, "cable.hdmi", 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.carts[crt.ID]; ok {
		t.Fatal("expected the mutation to invalidate the cached cart")
	}

	got, err := ct.core.Show(ctx, crt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 1 {
		t.Fatalf("expected a fresh cart after invalidation, got %+v", got)
	}
}
