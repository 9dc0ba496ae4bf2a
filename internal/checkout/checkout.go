// Package checkout drains a shopper's cart into one order.
package checkout

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var ErrEmptyCart = errors.New("cart is empty")

type Submitter interface {
	Create(ctx context.Context, req orders.CreateRequest) (orders.Order, bool, error)
}

type Service struct {
	Orders Submitter
	Phone  string // store's WhatsApp number
}

type Request struct {
	orders.Customer
	PaymentMethod  orders.PaymentMethod `json:"metodoPago"`
	IdempotencyKey string               `json:"-"`
}

type Result struct {
	Order      orders.Order `json:"pedido"`
	Replayed   bool         `json:"idempotente"`
	Message    string       `json:"mensaje"`
	HandoffURL string       `json:"whatsappUrl,omitempty"`
}

// Checkout submits the cart as one order. The submitted lines leave the cart
// only after the order was stored, and only those: units added while the
// order was being created stay. On any error the cart is left as it was so
// the shopper can retry. A replayed request already drained the cart the
// first time and leaves it alone.
func (s *Service) Checkout(ctx context.Context, c *cart.Store, req Request) (Result, error) {
	method := req.PaymentMethod
	if method == "" {
		method = orders.PaymentTransfer
	}
	lines := c.Lines()
	if len(lines) == 0 {
		return s.replayEmpty(ctx, req, method)
	}
	items := make([]orders.Line, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.OrderLine())
	}

	o, replayed, err := s.Orders.Create(ctx, orders.CreateRequest{
		Customer:      req.Customer,
		PaymentMethod: method,
		Items:         items,
		ExternalID:    req.IdempotencyKey,
	})
	if err != nil {
		return Result{}, err
	}
	if !replayed {
		c.Deduct(ctx, lines)
	}

	return s.result(o, replayed), nil
}

// replayEmpty answers a retried checkout whose first attempt already drained
// the cart.
func (s *Service) replayEmpty(ctx context.Context, req Request, method orders.PaymentMethod) (Result, error) {
	if req.IdempotencyKey == "" {
		return Result{}, ErrEmptyCart
	}
	o, replayed, err := s.Orders.Create(ctx, orders.CreateRequest{
		Customer:      req.Customer,
		PaymentMethod: method,
		ExternalID:    req.IdempotencyKey,
	})
	if err != nil && !orders.IsValidationError(err) {
		return Result{}, err
	}
	if err != nil || !replayed {
		return Result{}, ErrEmptyCart
	}
	return s.result(o, true), nil
}

func (s *Service) result(o orders.Order, replayed bool) Result {
	msg := Message(o)
	return Result{Order: o, Replayed: replayed, Message: msg, HandoffURL: HandoffURL(s.Phone, msg)}
}
