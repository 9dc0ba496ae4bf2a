package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Message is the text the shopper sends to the store after checkout.
func Message(o orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola! Acabo de realizar el pedido *#%d* en la web.\n\n", o.ID)
	fmt.Fprintf(&b, "*Cliente:* %s\n", o.Name)
	fmt.Fprintf(&b, "*Envío:* %s\n", o.Address)
	fmt.Fprintf(&b, "*Pago:* %s\n\n", o.PaymentMethod)
	b.WriteString("*Resumen:*\n")
	for i, l := range o.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		color := l.Color
		if color == "" {
			color = "N/A"
		}
		size := l.Size
		if size == "" {
			size = catalog.DefaultSize
		}
		fmt.Fprintf(&b, "• %dx %s\n   Color: %s | Talle: %s", l.Quantity, l.Name, color, size)
	}
	fmt.Fprintf(&b, "\n\n*Total: %s*", FormatARS(o.Total))
	return b.String()
}

// HandoffURL builds the WhatsApp deep link for phone. It returns "" when
// phone has no digits.
func HandoffURL(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	q := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + q
}

// FormatARS formats an amount like "$12.500" or "$1.250,50": dot thousands,
// comma decimals, cents only when non-zero.
func FormatARS(amount decimal.Decimal) string {
	amount = amount.Round(2)
	neg := amount.IsNegative()
	amount = amount.Abs()

	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()
	s := whole.String()

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 5)
	if neg {
		b.WriteString("-$")
	} else {
		b.WriteString("$")
	}
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	if cents != 0 {
		fmt.Fprintf(&b, ",%02d", cents)
	}
	return b.String()
}
