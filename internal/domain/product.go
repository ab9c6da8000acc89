package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductID is an opaque product key. Catalog feeds send it either as a
// JSON string or a JSON number. Numbers decode to their decimal text, so 42,
// 42.0 and "42" identify the same product; string ids are kept as written.
type ProductID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("product id: %w", err)
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}

	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("product id: %q is neither a string nor a number", string(data))
	}
	*id = ProductID(d.String())
	return nil
}

func (id ProductID) String() string { return string(id) }

// ParseProductID reads user supplied text (path params, CLI args) the way a
// JSON string id is read: trimmed, otherwise as written.
func ParseProductID(raw string) (ProductID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.InvalidInput("product id is required")
	}
	return ProductID(raw), nil
}

// Product is a read-only snapshot of a catalog product.
type Product struct {
	ID         ProductID         `json:"id" validate:"required"`
	Name       string            `json:"name" validate:"required"`
	Price      decimal.Decimal   `json:"price"`
	Category   string            `json:"category,omitempty"`
	ImageRef   string            `json:"imageRef,omitempty"`
	Digital    bool              `json:"digital,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate rejects snapshots no collection may hold.
func (p Product) Validate() error {
	if p.ID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if p.Price.IsNegative() {
		return apperrors.InvalidInput(fmt.Sprintf("product %s has a negative price", p.ID))
	}
	return nil
}

func (p Product) clone() Product {
	if p.Attributes != nil {
		attrs := make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		p.Attributes = attrs
	}
	return p
}

func indexOf(products []Product, id ProductID) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	for i := range products {
		out[i] = products[i].clone()
	}
	return out
}
