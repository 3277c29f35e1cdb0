package cart

import (
	"context"
	"sync"

	"storefront-cart/internal/metadata"
	"storefront-cart/internal/pricing"

	"github.com/google/uuid"
)

// GuestStore keeps an anonymous visitor's cart in memory. Totals are always
// computed locally.
type GuestStore struct {
	mu    sync.Mutex
	items []Item
	meta  *metadata.Cache
	newID func() string
}

func NewGuestStore(meta *metadata.Cache) *GuestStore {
	return &GuestStore{
		meta:  meta,
		newID: func() string { return "guest-" + uuid.NewString() },
	}
}

func (g *GuestStore) Remote() bool { return false }

func (g *GuestStore) Fetch(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(), nil
}

// Add merges into the line matching productID (or payload.ID) and otherwise
// appends a new line built from the payload and the metadata cache.
func (g *GuestStore) Add(ctx context.Context, productID string, quantity int, payload AddPayload) (Snapshot, error) {
	if productID == "" {
		return Snapshot{}, ErrProductIDRequired
	}
	if quantity <= 0 {
		quantity = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	targetID := payload.ID
	if targetID == "" {
		targetID = productID
	}

	cached, _ := g.meta.Get(productID)

	idx := -1
	for i, item := range g.items {
		if item.ProductID == productID || item.ID == targetID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		g.items[idx].Quantity += quantity
	} else {
		g.items = append(g.items, g.newLine(productID, targetID, quantity, payload, cached))
	}

	g.backfill(productID, payload)

	return g.snapshotLocked(), nil
}

func (g *GuestStore) newLine(productID, id string, quantity int, payload AddPayload, cached metadata.Product) Item {
	if id == "" {
		id = g.newID()
	}

	price := 0.0
	if v, ok := pricing.SanitizePrice(payload.Price); ok {
		price = v
	} else if cached.Price != nil {
		price = *cached.Price
	}

	installation := 0.0
	if v, ok := pricing.SanitizePrice(payload.InstallationPrice); ok {
		installation = v
	} else if cached.InstallationPrice != nil {
		installation = *cached.InstallationPrice
	}

	name := firstString(payload.Name, cached.Name, FallbackName)
	image := firstString(payload.Image, cached.Image, FallbackImage)

	stock := DefaultStock
	if payload.Stock != nil && *payload.Stock >= 0 {
		stock = *payload.Stock
	}

	return Item{
		ID:                id,
		ProductID:         productID,
		Quantity:          quantity,
		Price:             price,
		OriginalPrice:     price,
		Name:              name,
		Image:             image,
		InstallationPrice: installation,
		Stock:             stock,
	}
}

// backfill records what the add call knew about the product. Fallback values
// are never written.
func (g *GuestStore) backfill(productID string, payload AddPayload) {
	update := metadata.Product{Name: payload.Name}
	if payload.Image != FallbackImage {
		update.Image = payload.Image
	}
	if v, ok := pricing.SanitizePrice(payload.Price); ok && v > 0 {
		update.Price = pricing.Float(v)
	}
	if v, ok := pricing.SanitizePrice(payload.InstallationPrice); ok && v >= 0 {
		update.InstallationPrice = pricing.Float(v)
	}
	g.meta.Merge(productID, update)
}

// SetQuantity removes the line when quantity <= 0. Unknown ids are a no-op.
func (g *GuestStore) SetQuantity(ctx context.Context, itemID string, quantity int) (Snapshot, ApplyMode, error) {
	if itemID == "" {
		return Snapshot{}, ApplyFull, ErrItemIDRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.items {
		if g.items[i].ID != itemID {
			continue
		}
		if quantity <= 0 {
			g.items = append(g.items[:i], g.items[i+1:]...)
		} else {
			g.items[i].Quantity = quantity
		}
		break
	}

	return g.snapshotLocked(), ApplyFull, nil
}

func (g *GuestStore) Remove(ctx context.Context, itemID string) (Snapshot, error) {
	if itemID == "" {
		return Snapshot{}, ErrItemIDRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.items[:0]
	for _, item := range g.items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	g.items = kept

	return g.snapshotLocked(), nil
}

func (g *GuestStore) Clear(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = nil
	return g.snapshotLocked(), nil
}

// Len is the number of guest lines.
func (g *GuestStore) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

func (g *GuestStore) snapshotLocked() Snapshot {
	items := make([]Item, 0, len(g.items))
	for _, item := range g.items {
		line := item.clone()
		if line.Quantity <= 0 {
			line.Quantity = 1
		}
		line.Name = firstString(line.Name, FallbackName)
		line.Image = firstString(line.Image, FallbackImage)
		items = append(items, line)
	}
	return Snapshot{
		Items:  items,
		Totals: pricing.ComputeTotals(items, pricing.Overrides{}),
	}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
