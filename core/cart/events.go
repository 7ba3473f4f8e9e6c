package cart

const (
	EventItemAdded   = "cart.item.added"
	EventItemDeleted = "cart.item.deleted"
	EventCleared     = "cart.cleared"
)

// ItemAdded carries the item after the upsert together with the delta the
// upsert applied.
type ItemAdded struct {
	ID            string `json:"id"`
	CartID        string `json:"cartId"`
	ProductID     string `json:"productId"`
	Quantity      int64  `json:"quantity"`
	Total         int64  `json:"total"`
	Currency      string `json:"currency"`
	QuantityAdded int64  `json:"quantityAdded"`
	TotalAdded    int64  `json:"totalAdded"`
}

func (e ItemAdded) Name() string        { return EventItemAdded }
func (e ItemAdded) AggregateID() string { return e.CartID }

// ItemDeleted carries the full quantity and price of the removed row.
type ItemDeleted struct {
	ID        string `json:"id"`
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

func (e ItemDeleted) Name() string        { return EventItemDeleted }
func (e ItemDeleted) AggregateID() string { return e.CartID }

type Cleared struct {
	CartID   string `json:"cartId"`
	Quantity int64  `json:"quantity"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

func (e Cleared) Name() string        { return EventCleared }
func (e Cleared) AggregateID() string { return e.CartID }
