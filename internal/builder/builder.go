// Package builder assembles the lines of one manual order against a catalog
// snapshot. A Builder is discarded once its order is submitted or abandoned.
package builder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Catalog interface {
	Product(id int64) (catalog.Product, bool)
}

// Selection is the line being edited before it is committed.
type Selection struct {
	ProductID int64  `json:"productoId"`
	Color     string `json:"color"`
	Size      string `json:"talle"`
	Quantity  int    `json:"cantidad"`
}

// Line is a committed line with its display label.
type Line struct {
	orders.Line
	Display string `json:"etiqueta"`
}

// Builder is not safe for concurrent use.
type Builder struct {
	catalog Catalog
	sel     Selection
	lines   []Line
}

func New(c Catalog) *Builder {
	return &Builder{catalog: c, sel: Selection{Quantity: 1}}
}

func (b *Builder) Selection() Selection { return b.sel }

// SelectProduct drops any color, size and quantity chosen for the previous
// product.
func (b *Builder) SelectProduct(id int64) {
	b.sel = Selection{ProductID: id, Quantity: 1}
}

// SelectColor clears the size, which was read from the previous color.
func (b *Builder) SelectColor(color string) {
	b.sel.Color = strings.TrimSpace(color)
	b.sel.Size = ""
}

func (b *Builder) SelectSize(size string) {
	b.sel.Size = strings.TrimSpace(size)
	b.capQuantity()
}

// SetQuantity stores q, capped to the stock of the current color and size.
func (b *Builder) SetQuantity(q int) {
	b.sel.Quantity = q
	b.capQuantity()
}

func (b *Builder) capQuantity() {
	if st := b.CurrentStock(); st > 0 && b.sel.Quantity > st {
		b.sel.Quantity = st
	}
}

func (b *Builder) product() (catalog.Product, bool) {
	if b.sel.ProductID == 0 {
		return catalog.Product{}, false
	}
	return b.catalog.Product(b.sel.ProductID)
}

func (b *Builder) resolved(p catalog.Product) catalog.Selection {
	return p.Resolve(catalog.Selection{Color: b.sel.Color, Size: b.sel.Size})
}

func (b *Builder) AvailableColors() []string {
	p, ok := b.product()
	if !ok {
		return nil
	}
	return p.Colors()
}

func (b *Builder) AvailableSizes() []string {
	p, ok := b.product()
	if !ok {
		return nil
	}
	return p.SizesWithStock(b.resolved(p).Color)
}

// CurrentStock is the snapshot quantity for the selected color and size.
func (b *Builder) CurrentStock() int {
	p, ok := b.product()
	if !ok {
		return 0
	}
	sel := b.resolved(p)
	if sel.Size == "" {
		return 0
	}
	return p.StockAt(sel.Color, sel.Size)
}

// Commit validates the selection and appends it, merging into a line with
// the same product, color and size. The merged quantity must still fit the
// stock. On success the product stays selected and the rest is reset.
func (b *Builder) Commit() (Line, error) {
	if b.sel.ProductID == 0 {
		return Line{}, catalog.ErrProductRequired
	}
	p, ok := b.product()
	if !ok {
		return Line{}, fmt.Errorf("%w: %d", catalog.ErrProductNotFound, b.sel.ProductID)
	}
	sel := b.resolved(p)
	if err := p.CheckQuantity(sel, b.sel.Quantity); err != nil {
		return Line{}, err
	}

	i := b.indexOf(p.ID, sel.Color, sel.Size)
	if i >= 0 {
		if err := p.CheckQuantity(sel, b.lines[i].Quantity+b.sel.Quantity); err != nil {
			return Line{}, err
		}
		b.lines[i].Quantity += b.sel.Quantity
	} else {
		ol := orders.Line{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  b.sel.Quantity,
			Color:     sel.Color,
			Size:      sel.Size,
			UnitPrice: p.Price,
		}
		b.lines = append(b.lines, Line{Line: ol, Display: ol.Label()})
		i = len(b.lines) - 1
	}

	b.sel = Selection{ProductID: p.ID, Quantity: 1}
	return b.lines[i], nil
}

func (b *Builder) indexOf(id int64, color, size string) int {
	for i, l := range b.lines {
		if l.ProductID == id && l.Color == color && l.Size == size {
			return i
		}
	}
	return -1
}

// RemoveLine deletes the committed line at i. It reports false for an index
// out of range.
func (b *Builder) RemoveLine(i int) bool {
	if i < 0 || i >= len(b.lines) {
		return false
	}
	b.lines = append(b.lines[:i], b.lines[i+1:]...)
	return true
}

func (b *Builder) Lines() []Line {
	return append([]Line(nil), b.lines...)
}

func (b *Builder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Reset discards every line and the current selection.
func (b *Builder) Reset() {
	b.lines = nil
	b.sel = Selection{Quantity: 1}
}

// Request turns the committed lines into an order-creation request.
func (b *Builder) Request(c orders.Customer, method orders.PaymentMethod) orders.CreateRequest {
	items := make([]orders.Line, 0, len(b.lines))
	for _, l := range b.lines {
		items = append(items, l.Line)
	}
	return orders.CreateRequest{Customer: c, PaymentMethod: method, Items: items}
}
