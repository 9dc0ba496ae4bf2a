package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSize is the single size of a product sold without variants.
const DefaultSize = "Único"

type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"nombre"`
	Price      decimal.Decimal `json:"precio"`
	CategoryID int64           `json:"categoriaId"`
	Stock      int             `json:"stock"` // aggregate, informational only
	Images     []string        `json:"imagenes"`
	Variants   []Variant       `json:"variantes"`
	Active     bool            `json:"activo"`
	CreatedAt  time.Time       `json:"createdAt,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt,omitempty"`
}

// Variant is a color of a product. An empty Color marks the implicit variant
// of a product that is not sold in colors.
type Variant struct {
	Color       string      `json:"color"`
	StockBySize StockBySize `json:"stockPorTalle"`
}

type SizeStock struct {
	Size string
	Qty  int
}

// StockBySize keeps sizes in the order the catalog declared them.
type StockBySize []SizeStock

// Qty returns the quantity for size, 0 when absent.
func (s StockBySize) Qty(size string) int {
	for _, e := range s {
		if e.Size == size {
			return e.Qty
		}
	}
	return 0
}

func (s StockBySize) Sizes() []string {
	out := make([]string, 0, len(s))
	for _, e := range s {
		out = append(out, e.Size)
	}
	return out
}

func (s StockBySize) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(e.Size)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		fmt.Fprintf(&b, ":%d", e.Qty)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a {size: qty} object preserving key order.
func (s *StockBySize) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stockPorTalle: expected object, got %v", tok)
	}
	out := StockBySize{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		size, _ := tok.(string)
		var qty int
		if err := dec.Decode(&qty); err != nil {
			return fmt.Errorf("stockPorTalle[%s]: %w", size, err)
		}
		out = append(out, SizeStock{Size: size, Qty: qty})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Thumbnail is the first image of the product, if any.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Normalize turns any product shape into the variant model: negative
// quantities become zero, duplicate colors and sizes are merged, and a legacy
// product with only a flat stock becomes one implicit variant holding that
// stock under DefaultSize. Stock without a color is dropped when the product
// also has named colors, since no selection can reach it. The input is not
// modified.
func Normalize(p Product) Product {
	out := p
	out.Images = append([]string(nil), p.Images...)
	out.Variants = nil

	if len(p.Variants) == 0 {
		out.Variants = []Variant{{
			StockBySize: StockBySize{{Size: DefaultSize, Qty: max(p.Stock, 0)}},
		}}
		out.Stock = max(p.Stock, 0)
		return out
	}

	idx := map[string]int{}
	for _, v := range p.Variants {
		color := strings.TrimSpace(v.Color)
		i, ok := idx[color]
		if !ok {
			i = len(out.Variants)
			idx[color] = i
			out.Variants = append(out.Variants, Variant{Color: color, StockBySize: StockBySize{}})
		}
		for _, e := range v.StockBySize {
			size := strings.TrimSpace(e.Size)
			if size == "" {
				continue
			}
			out.Variants[i].StockBySize = addQty(out.Variants[i].StockBySize, size, max(e.Qty, 0))
		}
	}
	if i, ok := idx[""]; ok && len(idx) > 1 {
		out.Variants = append(out.Variants[:i], out.Variants[i+1:]...)
	}
	out.Stock = out.TotalStock()
	return out
}

// CheckVariants rejects a matrix that mixes named colors with stock that has
// no color. Admin writes call it before storing.
func CheckVariants(vs []Variant) error {
	named, blank := false, false
	for _, v := range vs {
		if strings.TrimSpace(v.Color) == "" {
			blank = true
		} else {
			named = true
		}
	}
	if named && blank {
		return ErrMixedVariants
	}
	return nil
}

func addQty(s StockBySize, size string, qty int) StockBySize {
	for i := range s {
		if s[i].Size == size {
			s[i].Qty += qty
			return s
		}
	}
	return append(s, SizeStock{Size: size, Qty: qty})
}
