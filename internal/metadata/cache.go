// Package metadata holds the process-wide product metadata side-cache. Any
// module that renders or adds a product may populate it; the cart reads it
// to recover names, prices and images the server omitted.
package metadata

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 4096

// Product is the display metadata known for one product. Nil numeric fields
// were never observed.
type Product struct {
	Name              string
	Price             *float64
	Image             string
	InstallationPrice *float64
}

type Cache struct {
	entries *lru.Cache[string, Product]
}

// New builds a cache bounded to size entries (DefaultSize when size <= 0).
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, Product](size)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Cache{entries: entries}
}

func (c *Cache) Get(productID string) (Product, bool) {
	if c == nil || productID == "" {
		return Product{}, false
	}
	return c.entries.Get(productID)
}

// Set replaces the entry for productID.
func (c *Cache) Set(productID string, p Product) {
	if c == nil || productID == "" {
		return
	}
	c.entries.Add(productID, p)
}

// Merge overlays the non-empty fields of update onto the existing entry, so
// known-good values are never replaced by blanks.
func (c *Cache) Merge(productID string, update Product) Product {
	if c == nil || productID == "" {
		return update
	}
	existing, _ := c.entries.Get(productID)
	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.Price != nil {
		existing.Price = update.Price
	}
	if update.Image != "" {
		existing.Image = update.Image
	}
	if update.InstallationPrice != nil {
		existing.InstallationPrice = update.InstallationPrice
	}
	c.entries.Add(productID, existing)
	return existing
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
