// Package catalog holds the trusted product table that every price is derived from.
package catalog

import (
	"sort"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
)

// Product is immutable once the catalog is built. UnitPrice is in rupees.
type Product struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	UnitPrice  int64    `json:"price"`
	ValidSizes []string `json:"sizes"`
}

// HasSize reports whether size is offered for the product.
func (p Product) HasSize(size string) bool {
	for _, s := range p.ValidSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Catalog is a read-only product lookup, safe for concurrent use.
type Catalog struct {
	products map[int]Product
}

func New(products ...Product) *Catalog {
	c := &Catalog{products: make(map[int]Product, len(products))}
	for _, p := range products {
		p.ValidSizes = append([]string(nil), p.ValidSizes...)
		c.products[p.ID] = p
	}
	return c
}

var apparelSizes = []string{"XS", "S", "M", "L", "XL", "XXL"}
var printSizes = []string{"A3", "A2", "A1"}

// Default returns the storefront's product table.
func Default() *Catalog {
	return New(
		Product{ID: 1, Name: "Sacred Hoodie", UnitPrice: 1799, ValidSizes: apparelSizes},
		Product{ID: 2, Name: "Cosmic Tee", UnitPrice: 899, ValidSizes: apparelSizes},
		Product{ID: 3, Name: "Mandala Art Print", UnitPrice: 699, ValidSizes: printSizes},
		Product{ID: 4, Name: "Front Poster", UnitPrice: 599, ValidSizes: printSizes},
		Product{ID: 5, Name: "Meditation Cushion", UnitPrice: 1299, ValidSizes: []string{"Standard"}},
		Product{ID: 6, Name: "Cosmic Journal", UnitPrice: 499, ValidSizes: []string{"A5"}},
	)
}

// Lookup finds a product by the id a client sent.
func (c *Catalog) Lookup(id models.ProductID) (Product, bool) {
	n, ok := id.Int()
	if !ok {
		return Product{}, false
	}
	p, ok := c.products[n]
	return p, ok
}

// All lists products ordered by id.
func (c *Catalog) All() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
