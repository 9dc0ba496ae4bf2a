package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrMissingCustomer = errors.New("customer name, phone and shipping address are required")
	ErrInvalidPayment  = errors.New("unknown payment method")
	ErrInvalidLine     = errors.New("invalid order line")
	ErrUnknownProduct  = errors.New("product is not for sale")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

// IsValidationError reports whether err was caused by the request content.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyOrder, ErrMissingCustomer, ErrInvalidPayment, ErrInvalidLine,
		ErrUnknownProduct, ErrInvalidStatus, ErrIllegalTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Store persists orders. Create is idempotent on Order.ExternalID: a replay
// returns the stored order and existed=true.
type Store interface {
	Create(ctx context.Context, o Order) (created Order, existed bool, err error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatus sets to only while the stored status still equals from.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (Order, error)
	SetProof(ctx context.Context, id int64, ref string) (Order, error)
}

type Publisher interface {
	PublishEvent(topic string, key []byte, eventType string, value []byte)
}

type StatusCache interface {
	SetStatus(ctx context.Context, id int64, s Status) error
	GetStatus(ctx context.Context, id int64) (Status, bool)
}

// Catalog is where order lines get their name and price.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// ReplayIndex remembers which order an external id created, in front of the
// store's own idempotency.
type ReplayIndex interface {
	Lookup(ctx context.Context, externalID string) (int64, bool)
	Remember(ctx context.Context, externalID string, orderID int64) error
}

type Service struct {
	Repo      Store
	Catalog   Catalog     // optional; without it client prices are kept
	Replays   ReplayIndex // optional
	Events    Publisher   // optional
	Cache     StatusCache // optional
	Lifecycle Lifecycle
	Metrics   *metrics.Orders // optional
	Producer  string
}

// Create validates the request, prices every line from the catalog,
// recomputes the total and stores the order as PENDIENTE. A known external
// id returns the order it created before anything else is checked. Nothing
// is stored when an error is returned.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, bool, error) {
	ext := strings.TrimSpace(req.ExternalID)
	if o, ok := s.replay(ctx, ext); ok {
		return o, true, nil
	}
	items, err := validate(req)
	if err != nil {
		return Order{}, false, err
	}
	if items, err = s.price(ctx, items); err != nil {
		return Order{}, false, err
	}
	o := Order{
		ExternalID:    ext,
		Customer:      trimCustomer(req.Customer),
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		Total:         Total(items),
		Status:        StatusPending,
	}
	created, existed, err := s.Repo.Create(ctx, o)
	if err != nil {
		return Order{}, false, fmt.Errorf("create order: %w", err)
	}
	s.remember(ctx, created)
	if existed {
		return created, true, nil
	}

	s.cacheStatus(ctx, created.ID, created.Status)
	s.publish(TopicOrderCreated, created.ID, EventOrderCreated, OrderCreatedPayload{
		OrderID:       created.ID,
		ExternalID:    created.ExternalID,
		PaymentMethod: created.PaymentMethod,
		Items:         created.Items,
		Total:         created.Total,
	})
	s.Metrics.OrderCreated(string(created.PaymentMethod))
	return created, false, nil
}

func (s *Service) replay(ctx context.Context, ext string) (Order, bool) {
	if ext == "" || s.Replays == nil {
		return Order{}, false
	}
	id, ok := s.Replays.Lookup(ctx, ext)
	if !ok {
		return Order{}, false
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil || o.ExternalID != ext {
		return Order{}, false
	}
	return o, true
}

func (s *Service) remember(ctx context.Context, o Order) {
	if o.ExternalID == "" || s.Replays == nil {
		return
	}
	_ = s.Replays.Remember(ctx, o.ExternalID, o.ID)
}

// price replaces the name and unit price of every line with the catalog's
// and rejects products that are unknown, inactive, or do not offer the
// line's color and size. Stock is not checked here.
func (s *Service) price(ctx context.Context, items []Line) ([]Line, error) {
	if s.Catalog == nil {
		return items, nil
	}
	out := make([]Line, 0, len(items))
	for i, l := range items {
		p, err := s.Catalog.GetProduct(ctx, l.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) || (err == nil && !p.Active) {
			return nil, fmt.Errorf("%w: item %d product %d", ErrUnknownProduct, i, l.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", l.ProductID, err)
		}
		sel := catalog.Selection{Color: l.Color, Size: l.Size}
		if !p.Offers(sel) {
			return nil, fmt.Errorf("%w: item %d %q is not offered by product %d", ErrInvalidLine, i, l.Label(), l.ProductID)
		}
		sel = p.Resolve(sel)
		l.Color, l.Size = sel.Color, sel.Size
		l.Name = p.Name
		l.UnitPrice = p.Price
		out = append(out, l)
	}
	return mergeLines(out), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return s.Repo.List(ctx, f)
}

// Status reads through the cache.
func (s *Service) Status(ctx context.Context, id int64) (Status, error) {
	if s.Cache != nil {
		if st, ok := s.Cache.GetStatus(ctx, id); ok {
			return st, nil
		}
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, id, o.Status)
	return o.Status, nil
}

// ChangeStatus applies one admin status change.
func (s *Service) ChangeStatus(ctx context.Context, id int64, to Status) (Order, error) {
	cur, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := s.Lifecycle.Check(id, cur.Status, to); err != nil {
		return Order{}, err
	}
	if cur.Status == to {
		return cur, nil
	}
	updated, err := s.Repo.UpdateStatus(ctx, id, cur.Status, to)
	if err != nil {
		return Order{}, err
	}
	s.cacheStatus(ctx, id, updated.Status)
	s.publish(TopicOrderStatusChanged, id, EventOrderStatusChanged, StatusChangedPayload{
		OrderID: id, From: cur.Status, To: updated.Status, Items: updated.Items,
	})
	s.Metrics.StatusChanged(string(cur.Status), string(updated.Status))
	return updated, nil
}

// AttachProof records a proof-of-payment reference; status is untouched.
func (s *Service) AttachProof(ctx context.Context, id int64, ref string) (Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Order{}, fmt.Errorf("%w: empty proof reference", ErrInvalidLine)
	}
	o, err := s.Repo.SetProof(ctx, id, ref)
	if err != nil {
		return Order{}, err
	}
	s.publish(TopicOrderProof, id, EventProofAttached, ProofAttachedPayload{OrderID: id, ProofRef: ref})
	return o, nil
}

func (s *Service) cacheStatus(ctx context.Context, id int64, st Status) {
	if s.Cache == nil {
		return
	}
	_ = s.Cache.SetStatus(ctx, id, st)
}

func (s *Service) publish(topic string, orderID int64, eventType string, payload any) {
	if s.Events == nil {
		return
	}
	p, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Producer,
		CorrelationID: fmt.Sprint(orderID),
		Payload:       p,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.Events.PublishEvent(topic, PartitionKey(orderID), eventType, b)
}

func trimCustomer(c Customer) Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
}

// validate checks the request and merges lines sharing product, color and size.
func validate(req CreateRequest) ([]Line, error) {
	c := trimCustomer(req.Customer)
	if c.Name == "" || c.Phone == "" || c.Address == "" {
		return nil, ErrMissingCustomer
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPayment, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	out := make([]Line, 0, len(req.Items))
	for i, l := range req.Items {
		l.Color = strings.TrimSpace(l.Color)
		l.Size = strings.TrimSpace(l.Size)
		switch {
		case l.ProductID <= 0:
			return nil, fmt.Errorf("%w: item %d has no product", ErrInvalidLine, i)
		case l.Quantity <= 0:
			return nil, fmt.Errorf("%w: item %d quantity %d", ErrInvalidLine, i, l.Quantity)
		case l.Size == "":
			return nil, fmt.Errorf("%w: item %d has no size", ErrInvalidLine, i)
		case l.UnitPrice.IsNegative():
			return nil, fmt.Errorf("%w: item %d has a negative price", ErrInvalidLine, i)
		}
		out = append(out, l)
	}
	return mergeLines(out), nil
}

// mergeLines folds lines sharing product, color and size into the first one.
func mergeLines(in []Line) []Line {
	out := make([]Line, 0, len(in))
	for _, l := range in {
		merged := false
		for j := range out {
			if out[j].ProductID == l.ProductID && out[j].Color == l.Color && out[j].Size == l.Size {
				out[j].Quantity += l.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, l)
		}
	}
	return out
}
