package shop

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// MatchCutoff is the minimum similarity ratio of a fuzzy product match
const MatchCutoff = 0.6

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ErrUnknownCategory is returned by Recommend when no product has the category
var ErrUnknownCategory = errors.New("unknown category")

// Product is a catalog item
type Product struct {
	Key         string   `json:"-" yaml:"key"`
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Price       float64  `json:"price" yaml:"price"`
	Stock       int      `json:"stock" yaml:"stock"`
	Features    []string `json:"features" yaml:"features"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Rating      float64  `json:"rating" yaml:"rating"`
	Reviews     int      `json:"reviews" yaml:"reviews"`
}

// Available returns true when the product is in stock
func (p *Product) Available() bool {
	return p.Stock > 0
}

type catalogFile struct {
	Products []*Product `yaml:"products"`
}

// Catalog is a read-only product catalog,
// products are kept in declaration order.
type Catalog struct {
	products []*Product
	byKey    map[string]*Product
	byID     map[string]*Product
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog returns the catalog from the YAML file
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load catalog")
	}
	return ParseCatalog(b)
}

// ParseCatalog returns the catalog from YAML,
// the product key defaults to the lower case name.
func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	if len(f.Products) == 0 {
		return nil, errors.New("catalog has no products")
	}

	c := &Catalog{
		byKey: make(map[string]*Product, len(f.Products)),
		byID:  make(map[string]*Product, len(f.Products)),
	}
	for _, p := range f.Products {
		if p.ID == "" || p.Name == "" {
			return nil, errors.Newf("catalog product %q: id and name are required", p.Name)
		}
		if p.Price < 0 || p.Stock < 0 {
			return nil, errors.Newf("catalog product %s: price and stock must not be negative", p.ID)
		}
		p.Key = normalize(p.Key)
		if p.Key == "" {
			p.Key = normalize(p.Name)
		}
		if _, ok := c.byKey[p.Key]; ok {
			return nil, errors.Newf("catalog product %s: duplicate key %q", p.ID, p.Key)
		}
		if _, ok := c.byID[p.ID]; ok {
			return nil, errors.Newf("catalog product %s: duplicate id", p.ID)
		}
		c.byKey[p.Key] = p
		c.byID[p.ID] = p
		c.products = append(c.products, p)
	}
	return c, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Products returns the products in catalog order
func (c *Catalog) Products() []*Product {
	return append([]*Product(nil), c.products...)
}

// Get returns the product by ID
func (c *Catalog) Get(id string) (*Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Find returns the product by exact key, or the closest key
// with similarity ratio of at least MatchCutoff.
// On equal ratio the greater key wins.
func (c *Catalog) Find(name string) (*Product, bool) {
	key := normalize(name)
	if key == "" {
		return nil, false
	}
	if p, ok := c.byKey[key]; ok {
		return p, true
	}

	query := strings.Split(key, "")
	var (
		best      *Product
		bestRatio float64
	)
	for _, p := range c.products {
		m := difflib.NewMatcher(strings.Split(p.Key, ""), query)
		ratio := m.Ratio()
		if ratio < MatchCutoff {
			continue
		}
		if best == nil || ratio > bestRatio || (ratio == bestRatio && p.Key > best.Key) {
			best = p
			bestRatio = ratio
		}
	}
	return best, best != nil
}

// Suggestions returns the first n products
func (c *Catalog) Suggestions(n int) []*Product {
	n = min(max(n, 0), len(c.products))
	return append([]*Product(nil), c.products[:n]...)
}

// Categories returns the sorted distinct categories
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var list []string
	for _, p := range c.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			list = append(list, p.Category)
		}
	}
	sort.Strings(list)
	return list
}

// Recommend returns up to n products of the category, or of all categories
// when category is empty, ordered by rating and reviews.
// The error is marked with ErrUnknownCategory when no product has the category.
func (c *Catalog) Recommend(category string, n int) ([]*Product, error) {
	if n <= 0 {
		n = 3
	}
	category = strings.TrimSpace(category)

	var list []*Product
	for _, p := range c.products {
		if category == "" || strings.EqualFold(p.Category, category) {
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		return nil, errors.Mark(errors.Newf("no products in category %q, available categories: %s",
			category, strings.Join(c.Categories(), ", ")), ErrUnknownCategory)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Rating != list[j].Rating {
			return list[i].Rating > list[j].Rating
		}
		return list[i].Reviews > list[j].Reviews
	})
	return list[:min(n, len(list))], nil
}
