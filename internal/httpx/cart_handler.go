package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const (
	HeaderCartSession    = "X-Cart-Session"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type sessionKey struct{}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := strings.TrimSpace(r.Header.Get(HeaderCartSession))
		if s == "" || len(s) > 128 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + HeaderCartSession + " header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func (a *API) openCart(r *http.Request) *cart.Store {
	s, _ := r.Context().Value(sessionKey{}).(string)
	return a.Carts(r.Context(), s)
}

type cartView struct {
	Items     []cart.Line     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"cantidadItems"`
}

func viewOf(c *cart.Store) cartView {
	lines := c.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{Items: lines, Total: c.Total(), ItemCount: c.ItemCount()}
}

type cartItemReq struct {
	ProductID int64  `json:"productoId"`
	Color     string `json:"color"`
	Size      string `json:"talle"`
	Quantity  int    `json:"cantidad"`
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(a.openCart(r)))
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	c := a.openCart(r)
	c.Clear(r.Context())
	writeJSON(w, http.StatusOK, viewOf(c))
}

// addCartItem checks the selection against current stock, counting what the
// stored cart already holds, as part of the add itself.
func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, r, catalog.ErrProductRequired)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.GetProduct(ctx, req.ProductID)
	if err == nil && !p.Active {
		err = catalog.ErrProductNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	sel := p.Resolve(catalog.Selection{Color: req.Color, Size: req.Size})
	if err := p.CheckQuantity(sel, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	c := a.openCart(r)
	err = c.AddChecked(ctx, p, sel, req.Quantity, func(total int) error {
		return p.CheckQuantity(sel, total)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (a *API) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c := a.openCart(r)
	c.UpdateQuantity(r.Context(), cart.KeyOf(req.ProductID, req.Color, req.Size), req.Quantity)
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("productoId"), 10, 64)
	if err != nil {
		writeError(w, r, errBadID)
		return
	}
	c := a.openCart(r)
	c.Remove(r.Context(), cart.KeyOf(id, q.Get("color"), q.Get("talle")))
	writeJSON(w, http.StatusOK, viewOf(c))
}

type checkoutReq struct {
	orders.Customer
	PaymentMethod orders.PaymentMethod `json:"metodoPago"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	res, err := a.Checkout.Checkout(ctx, a.openCart(r), checkout.Request{
		Customer:       req.Customer,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}
