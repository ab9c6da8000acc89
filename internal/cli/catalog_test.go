package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const testCatalogYAML = `
products:
  - id: 42
    name: Ceramic mug
    price: "12.50"
    category: kitchen
    attributes:
      color: white
  - id: "7"
    name: Tea sampler
    price: 8
  - id: sku-ebook
    name: Brewing guide
    price: "4.99"
    digital: true
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	products := c.Products()
	require.Len(t, products, 3)
	assert.Equal(t, domain.ProductID("42"), products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "white", products[0].Attributes["color"])
	assert.True(t, products[1].Price.Equal(decimal.NewFromInt(8)))
	assert.True(t, products[2].Digital)
}

func TestCatalog_Lookup_TrimsIDs(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	for _, raw := range []string{"42", " 42 "} {
		p, err := c.Lookup(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "Ceramic mug", p.Name)
	}

	_, err = c.Lookup("042")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "ids are opaque text")
}

func TestCatalog_Lookup_Errors(t *testing.T) {
	c, err := ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	_, err = c.Lookup("999")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = c.Lookup("  ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	var none *Catalog
	_, err = none.Lookup("42")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Empty(t, none.Products())
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate id", "products:\n  - {id: 1, name: a}\n  - {id: \"1.0\", name: b}\n", "duplicate id 1"},
		{"bad price", "products:\n  - {id: 1, name: a, price: cheap}\n", "price"},
		{"negative price", "products:\n  - {id: 1, name: a, price: \"-1\"}\n", "negative price"},
		{"missing id", "products:\n  - {name: a}\n", "product id is required"},
		{"not yaml", "products: [", "parse catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
