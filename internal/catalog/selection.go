package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProductRequired  = errors.New("select a product")
	ErrColorRequired    = errors.New("select a color")
	ErrSizeRequired     = errors.New("select a size")
	ErrOutOfStock       = errors.New("no stock for this color and size")
	ErrExceedsStock     = errors.New("quantity exceeds available stock")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrProductNotFound  = errors.New("product not found")
	ErrUnknownSelection = errors.New("color or size not offered by this product")
	ErrMixedVariants    = errors.New("a product with colors cannot also have stock without a color")
)

// Selection is a color/size choice for one product.
type Selection struct {
	Color string `json:"color"`
	Size  string `json:"talle"`
}

// Resolve trims the selection and fills the size of a product sold without
// colors or sizes.
func (p Product) Resolve(sel Selection) Selection {
	sel.Color = strings.TrimSpace(sel.Color)
	sel.Size = strings.TrimSpace(sel.Size)
	if !p.HasColors() {
		sel.Color = ""
		if sel.Size == "" {
			sel.Size = DefaultSize
		}
	}
	return sel
}

// Validate checks that sel names a purchasable variant of p: a color when the
// product has colors and a size when the color still has sizes in stock.
func (p Product) Validate(sel Selection) error {
	sel = p.Resolve(sel)
	if p.HasColors() && sel.Color == "" {
		return ErrColorRequired
	}
	if sel.Color != "" && !contains(p.Colors(), sel.Color) {
		return ErrUnknownSelection
	}
	if sel.Size == "" {
		if len(p.SizesWithStock(sel.Color)) > 0 {
			return ErrSizeRequired
		}
		return ErrOutOfStock
	}
	return nil
}

// CheckQuantity validates a selection and that qty fits the stock snapshot.
// The check is advisory: nothing is reserved.
func (p Product) CheckQuantity(sel Selection, qty int) error {
	if err := p.Validate(sel); err != nil {
		return err
	}
	sel = p.Resolve(sel)
	if qty < 1 {
		return ErrInvalidQuantity
	}
	avail := p.StockAt(sel.Color, sel.Size)
	if avail == 0 {
		return ErrOutOfStock
	}
	if qty > avail {
		return fmt.Errorf("%w: requested %d, available %d", ErrExceedsStock, qty, avail)
	}
	return nil
}

// Offers reports whether sel names a color and size present in the product's
// matrix, whatever its stock.
func (p Product) Offers(sel Selection) bool {
	sel = p.Resolve(sel)
	if p.HasColors() && sel.Color == "" {
		return false
	}
	for _, v := range p.Variants {
		if v.Color == sel.Color && contains(v.StockBySize.Sizes(), sel.Size) {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err is a user-facing selection problem.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrProductRequired, ErrColorRequired, ErrSizeRequired,
		ErrOutOfStock, ErrExceedsStock, ErrInvalidQuantity, ErrUnknownSelection,
		ErrMixedVariants, ErrInvalidProduct,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
