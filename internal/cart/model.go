package cart

import (
	"storefront-cart/internal/pricing"
)

const (
	FallbackImage = "assets/images/product1.png"
	FallbackName  = "Product"
	DefaultStock  = 999
)

// Item is one cart line. Price is the effective unit price used for totals.
type Item struct {
	ID                string   `json:"id"`
	ProductID         string   `json:"productId"`
	Quantity          int      `json:"quantity"`
	Price             float64  `json:"price"`
	OriginalPrice     float64  `json:"originalPrice"`
	SalePrice         *float64 `json:"salePrice"`
	Name              string   `json:"name"`
	Image             string   `json:"image"`
	InstallationPrice float64  `json:"installationPrice"`
	Stock             int      `json:"stock"`
}

func (i Item) UnitPrice() float64        { return i.Price }
func (i Item) Qty() int                  { return i.Quantity }
func (i Item) InstallationUnit() float64 { return i.InstallationPrice }
func (i Item) ListPrice() float64        { return i.OriginalPrice }

func (i Item) SaleUnitPrice() (float64, bool) {
	if i.SalePrice == nil {
		return 0, false
	}
	return *i.SalePrice, true
}

// LineTotal is price × quantity.
func (i Item) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

func (i Item) clone() Item {
	if i.SalePrice != nil {
		sale := *i.SalePrice
		i.SalePrice = &sale
	}
	return i
}

// State is the authoritative client-side view of the cart.
type State struct {
	ID        string         `json:"id,omitempty"`
	Items     []Item         `json:"items"`
	Totals    pricing.Totals `json:"totals"`
	IsLoading bool           `json:"isLoading"`
	IsLoaded  bool           `json:"isLoaded"`
	Err       error          `json:"-"`
}

// Find returns the line with the given id.
func (s State) Find(itemID string) (Item, bool) {
	for _, item := range s.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

func (s State) clone() State {
	items := make([]Item, len(s.Items))
	for i, item := range s.Items {
		items[i] = item.clone()
	}
	s.Items = items
	return s
}

// Snapshot is a normalized cart as produced by a backend.
type Snapshot struct {
	ID     string
	Items  []Item
	Totals pricing.Totals
}

func (s Snapshot) hasItems() bool {
	return len(s.Items) > 0
}

// AddPayload carries the display data known at add time. Price and
// InstallationPrice may be numbers or formatted strings.
type AddPayload struct {
	ID                string         `json:"id,omitempty"`
	Name              string         `json:"name,omitempty"`
	Price             any            `json:"price,omitempty"`
	Image             string         `json:"image,omitempty"`
	InstallationPrice any            `json:"installationPrice,omitempty"`
	Stock             *int           `json:"stock,omitempty"`
	Options           map[string]any `json:"-"`
}

// RemoveOptions tunes RemoveItem.
type RemoveOptions struct {
	// Silent suppresses the updated event for this removal.
	Silent bool
}

// ResetOptions tunes Reset.
type ResetOptions struct {
	Silent bool
}
