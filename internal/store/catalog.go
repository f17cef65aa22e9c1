package store

import (
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/models"
)

// Catalog stores the product list in a single JSON file keyed by normalized
// name, rewritten atomically on every change. Price and stock are optional
// per product.
type Catalog struct {
	path string
}

// NewCatalog returns a catalog backed by the given file path.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// GetPrice returns the configured unit price for sku.
func (c *Catalog) GetPrice(sku string) (decimal.Decimal, error) {
	products, err := c.load()
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := products[normalizeKey(sku)]
	if !ok || p.Price == nil {
		return decimal.Zero, models.ErrNotFound
	}
	return *p.Price, nil
}

// AdjustStock applies delta to sku's stock level. A negative delta that would
// take stock below zero is rejected with ErrInsufficientStock. Products
// without stock tracking are left untouched.
func (c *Catalog) AdjustStock(sku string, delta decimal.Decimal) error {
	products, err := c.load()
	if err != nil {
		return err
	}
	key := normalizeKey(sku)
	p, ok := products[key]
	if !ok {
		return models.ErrNotFound
	}
	if p.Stock == nil {
		return nil
	}
	next := p.Stock.Add(delta)
	if next.IsNegative() {
		return models.ErrInsufficientStock
	}
	p.Stock = &next
	products[key] = p
	return c.save(products)
}

// Put inserts or replaces a product, keyed by its normalized name.
func (c *Catalog) Put(p models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return models.ErrEmptySKU
	}
	products, err := c.load()
	if err != nil {
		return err
	}
	products[normalizeKey(p.Name)] = p
	return c.save(products)
}

// Rename moves a product to a new name, replacing any product already stored
// under that name.
func (c *Catalog) Rename(oldName string, p models.Product) error {
	products, err := c.load()
	if err != nil {
		return err
	}
	oldKey := normalizeKey(oldName)
	if _, ok := products[oldKey]; !ok {
		return models.ErrNotFound
	}
	delete(products, oldKey)
	products[normalizeKey(p.Name)] = p
	return c.save(products)
}

// Delete removes a product.
func (c *Catalog) Delete(name string) error {
	products, err := c.load()
	if err != nil {
		return err
	}
	key := normalizeKey(name)
	if _, ok := products[key]; !ok {
		return models.ErrNotFound
	}
	delete(products, key)
	return c.save(products)
}

// List returns all products sorted by name, case-insensitively.
func (c *Catalog) List() ([]models.Product, error) {
	products, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Find looks a product up by exact normalized name, falling back to the first
// product whose name contains the query.
func (c *Catalog) Find(name string) (models.Product, error) {
	products, err := c.load()
	if err != nil {
		return models.Product{}, err
	}
	key := normalizeKey(name)
	if key == "" {
		return models.Product{}, models.ErrNotFound
	}
	if p, ok := products[key]; ok {
		return p, nil
	}
	for k, p := range products {
		if strings.Contains(k, key) || strings.Contains(strings.ToLower(p.Name), key) {
			return p, nil
		}
	}
	return models.Product{}, models.ErrNotFound
}

func (c *Catalog) load() (map[string]models.Product, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]models.Product{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", c.path, err)
	}
	products := map[string]models.Product{}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", c.path, err)
	}
	return products, nil
}

func (c *Catalog) save(products map[string]models.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return WriteFileAtomic(c.path, data)
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
