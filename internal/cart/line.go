package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Key is the identity of a cart line. Two selections with the same key merge.
type Key struct {
	ProductID int64  `json:"productoId"`
	Color     string `json:"color"`
	Size      string `json:"talle"`
}

// KeyOf builds the canonical key; an empty size means the product's only size.
func KeyOf(productID int64, color, size string) Key {
	size = strings.TrimSpace(size)
	if size == "" {
		size = catalog.DefaultSize
	}
	return Key{ProductID: productID, Color: strings.TrimSpace(color), Size: size}
}

// Line carries the price and display data captured when it was added, so the
// cart stays readable if the catalog changes later.
type Line struct {
	ProductID int64           `json:"productoId"`
	Color     string          `json:"color"`
	Size      string          `json:"talle"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio"`
	Name      string          `json:"nombre"`
	Thumbnail string          `json:"imagen,omitempty"`
}

func (l Line) Key() Key { return KeyOf(l.ProductID, l.Color, l.Size) }

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) OrderLine() orders.Line {
	return orders.Line{
		ProductID: l.ProductID,
		Name:      l.Name,
		Quantity:  l.Quantity,
		Color:     l.Color,
		Size:      l.Size,
		UnitPrice: l.UnitPrice,
	}
}
