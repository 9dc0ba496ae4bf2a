package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "Transferencia"
	PaymentCash     PaymentMethod = "Efectivo"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentTransfer || m == PaymentCash
}

type Customer struct {
	Name    string `json:"nombreCliente"`
	Phone   string `json:"telefono"`
	Address string `json:"direccionEnvio"`
}

// Line is the single wire shape of an order line. Color and size travel as
// separate fields; the combined "Color - Size" text is only built by Label.
type Line struct {
	ProductID int64           `json:"productoId"`
	Name      string          `json:"nombre,omitempty"`
	Quantity  int             `json:"cantidad"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"talle"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Label is the display text for the variant, e.g. "Negro - M" or "M".
func (l Line) Label() string {
	color := strings.TrimSpace(l.Color)
	if color == "" {
		return l.Size
	}
	return color + " - " + l.Size
}

// Total always recomputes the sum of quantity × unit price.
func Total(lines []Line) decimal.Decimal {
	t := decimal.Zero
	for _, l := range lines {
		t = t.Add(l.Subtotal())
	}
	return t
}

type Order struct {
	ID            int64           `json:"id"`
	ExternalID    string          `json:"externalId,omitempty"`
	Customer                      // nombreCliente, telefono, direccionEnvio
	PaymentMethod PaymentMethod   `json:"metodoPago"`
	Items         []Line          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"estado"`
	ProofRef      string          `json:"facturaUrl,omitempty"`
	CreatedAt     time.Time       `json:"fecha"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CreateRequest is what the storefront checkout and the admin manual-order
// workflow submit.
type CreateRequest struct {
	Customer
	PaymentMethod PaymentMethod `json:"metodoPago"`
	Items         []Line        `json:"items"`
	ExternalID    string        `json:"externalId,omitempty"`
}

type ListFilter struct {
	Status Status // empty means all
	Search string // customer name substring or order id
}
