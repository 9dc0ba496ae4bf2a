package catalog

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("product needs a name and a non-negative price")

// ProductInput is the admin form for creating or editing a product.
type ProductInput struct {
	Name       string          `json:"nombre"`
	Price      decimal.Decimal `json:"precio"`
	CategoryID int64           `json:"categoriaId"`
	Stock      int             `json:"stock"`
	Images     []string        `json:"imagenes"`
	Variants   []Variant       `json:"variantes"`
	Active     *bool           `json:"activo"`
}

func (in ProductInput) Check() error {
	if strings.TrimSpace(in.Name) == "" || in.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return CheckVariants(in.Variants)
}

func (in ProductInput) images() []string {
	out := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
