package cli

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// catalogFile is the on-disk YAML layout:
//
//	products:
//	  - id: 42
//	    name: Ceramic mug
//	    price: "12.50"
//	    category: kitchen
//	    attributes:
//	      color: white
type catalogFile struct {
	Products []catalogEntry `yaml:"products"`
}

type catalogEntry struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Price      string            `yaml:"price"`
	Category   string            `yaml:"category"`
	ImageRef   string            `yaml:"imageRef"`
	Digital    bool              `yaml:"digital"`
	Attributes map[string]string `yaml:"attributes"`
}

// Catalog resolves product ids typed on the command line to full product
// snapshots.
type Catalog struct {
	products map[domain.ProductID]domain.Product
	order    []domain.ProductID
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog. Ids are normalized the same way the
// cart does, so "42" and 42.0 name the same product.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{products: make(map[domain.ProductID]domain.Product, len(f.Products))}
	for i, e := range f.Products {
		id, err := domain.ParseProductID(e.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if _, dup := c.products[id]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %s", i, id)
		}

		price := decimal.Zero
		if e.Price != "" {
			price, err = decimal.NewFromString(e.Price)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %d: price %q: %w", i, e.Price, err)
			}
		}

		p := domain.Product{
			ID:         id,
			Name:       e.Name,
			Price:      price,
			Category:   e.Category,
			ImageRef:   e.ImageRef,
			Digital:    e.Digital,
			Attributes: e.Attributes,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		c.products[id] = p
		c.order = append(c.order, id)
	}
	return c, nil
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(raw string) (domain.Product, error) {
	id, err := domain.ParseProductID(raw)
	if err != nil {
		return domain.Product{}, err
	}
	if c == nil {
		return domain.Product{}, apperrors.InvalidInput("no catalog loaded; pass --catalog")
	}
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", id.String())
	}
	return p, nil
}

// Products lists the catalog in file order.
func (c *Catalog) Products() []domain.Product {
	if c == nil {
		return nil
	}
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}
