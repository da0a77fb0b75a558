package market

import (
	"fmt"
	"sort"
	"sync"
)

// Product is a tradable instrument and its symmetric position limit.
type Product struct {
	Symbol string
	Limit  int64 // inventory must stay within [-Limit, Limit]
}

// Registry manages the products a bot instance trades.
// Safe for concurrent readers; the API server shares one.
type Registry struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewRegistry creates an empty product registry
func NewRegistry() *Registry {
	return &Registry{
		products: make(map[string]Product),
	}
}

// Register adds a product.
// Returns error if the symbol is empty, the limit negative, or the symbol already registered.
func (r *Registry) Register(p Product) error {
	if p.Symbol == "" {
		return fmt.Errorf("cannot register product without symbol")
	}
	if p.Limit < 0 {
		return fmt.Errorf("product %s: negative position limit %d", p.Symbol, p.Limit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.Symbol]; exists {
		return fmt.Errorf("product %s already registered", p.Symbol)
	}
	r.products[p.Symbol] = p
	return nil
}

// Get retrieves a product by symbol
func (r *Registry) Get(symbol string) (Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[symbol]
	return p, ok
}

// Limit returns the position limit for symbol.
func (r *Registry) Limit(symbol string) (int64, bool) {
	p, ok := r.Get(symbol)
	return p.Limit, ok
}

// List returns all products sorted by symbol.
func (r *Registry) List() []Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
