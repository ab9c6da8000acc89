package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// CartRecordKey is the Local Cache key holding the serialized cart.
const CartRecordKey = "cart:v1"

// CartLine is a product snapshot and its quantity (always >= 1).
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered list of lines keyed by product id.
type Cart struct {
	lines []CartLine
}

// NewCart builds a cart from lines, normalizing them first.
func NewCart(lines []CartLine) *Cart {
	return &Cart{lines: normalizeLines(lines)}
}

// Add increments the quantity of an existing line, refreshing its snapshot,
// or appends a new line with quantity 1.
func (c *Cart) Add(p Product) {
	if i := c.find(p.ID); i >= 0 {
		c.lines[i].Product = p.clone()
		c.lines[i].Quantity = addQuantity(c.lines[i].Quantity, 1)
		return
	}
	c.lines = append(c.lines, CartLine{Product: p.clone(), Quantity: 1})
}

// Remove deletes the line for id and reports whether one existed.
func (c *Cart) Remove(id ProductID) bool {
	i := c.find(id)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// UpdateQuantity applies delta clamped at zero and saturated at
// math.MaxInt; zero removes the line.
// Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id ProductID, delta int) bool {
	i := c.find(id)
	if i < 0 {
		return false
	}
	q := addQuantity(c.lines[i].Quantity, delta)
	if q <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return true
	}
	c.lines[i].Quantity = q
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	for i, l := range c.lines {
		out[i] = CartLine{Product: l.Product.clone(), Quantity: l.Quantity}
	}
	return out
}

// Total is Σ price × quantity, recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is Σ quantity.
func (c *Cart) Count() int {
	var n int
	for _, l := range c.lines {
		n = addQuantity(n, l.Quantity)
	}
	return n
}

// Quantity returns the quantity held for id, 0 if absent.
func (c *Cart) Quantity(id ProductID) int {
	if i := c.find(id); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) find(id ProductID) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == id {
			return i
		}
	}
	return -1
}

// addQuantity adds delta to a non-negative quantity, saturating instead of
// wrapping past math.MaxInt.
func addQuantity(q, delta int) int {
	if delta > 0 && q > math.MaxInt-delta {
		return math.MaxInt
	}
	return q + delta
}

// normalizeLines drops lines without an id or with a non-positive quantity
// and merges duplicate ids into the first occurrence.
func normalizeLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	seen := make(map[ProductID]int, len(lines))
	for _, l := range lines {
		if l.Product.ID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := seen[l.Product.ID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, l.Quantity)
			continue
		}
		seen[l.Product.ID] = len(out)
		out = append(out, CartLine{Product: l.Product.clone(), Quantity: l.Quantity})
	}
	return out
}

// cartRecordLine is the flat, camelCase shape persisted under CartRecordKey.
type cartRecordLine struct {
	ProductID  ProductID         `json:"productId"`
	Name       string            `json:"name"`
	Price      decimal.Decimal   `json:"price"`
	Category   string            `json:"category,omitempty"`
	ImageRef   string            `json:"imageRef,omitempty"`
	Digital    bool              `json:"digital,omitempty"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// EncodeCartRecord serializes lines for the Local Cache.
func EncodeCartRecord(lines []CartLine) ([]byte, error) {
	rec := make([]cartRecordLine, len(lines))
	for i, l := range lines {
		rec[i] = cartRecordLine{
			ProductID:  l.Product.ID,
			Name:       l.Product.Name,
			Price:      l.Product.Price,
			Category:   l.Product.Category,
			ImageRef:   l.Product.ImageRef,
			Digital:    l.Product.Digital,
			Quantity:   l.Quantity,
			Attributes: l.Product.Attributes,
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cart record: %w", err)
	}
	return data, nil
}

// DecodeCartRecord parses a persisted cart. Lines that are not usable are
// normalized away; an unparseable record returns an error and no lines.
func DecodeCartRecord(data []byte) ([]CartLine, error) {
	var rec []cartRecordLine
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cart record: %w", err)
	}

	lines := make([]CartLine, 0, len(rec))
	for _, r := range rec {
		if r.Price.IsNegative() {
			continue
		}
		lines = append(lines, CartLine{
			Product: Product{
				ID:         r.ProductID,
				Name:       r.Name,
				Price:      r.Price,
				Category:   r.Category,
				ImageRef:   r.ImageRef,
				Digital:    r.Digital,
				Attributes: r.Attributes,
			},
			Quantity: r.Quantity,
		})
	}
	return normalizeLines(lines), nil
}
