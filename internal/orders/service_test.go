package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type memStore struct {
	mu     sync.Mutex
	orders map[int64]Order
	byExt  map[string]int64
	nextID int64
	fail   error
}

func newMemStore() *memStore {
	return &memStore{orders: map[int64]Order{}, byExt: map[string]int64{}}
}

func (m *memStore) Create(_ context.Context, o Order) (Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Order{}, false, m.fail
	}
	if id, ok := m.byExt[o.ExternalID]; ok && o.ExternalID != "" {
		return m.orders[id], true, nil
	}
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	if o.ExternalID != "" {
		m.byExt[o.ExternalID] = o.ID
	}
	return o, false, nil
}

func (m *memStore) Get(_ context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for id := int64(1); id <= m.nextID; id++ {
		o, ok := m.orders[id]
		if ok && (f.Status == "" || o.Status == f.Status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, from, to Status) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != from {
		return Order{}, ErrStatusConflict
	}
	o.Status = to
	m.orders[id] = o
	return o, nil
}

func (m *memStore) SetProof(_ context.Context, id int64, ref string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.ProofRef = ref
	m.orders[id] = o
	return o, nil
}

type published struct {
	topic, eventType string
	key              []byte
	env              Envelope
}

type fakePublisher struct{ events []published }

func (f *fakePublisher) PublishEvent(topic string, key []byte, eventType string, value []byte) {
	var env Envelope
	_ = json.Unmarshal(value, &env)
	f.events = append(f.events, published{topic: topic, eventType: eventType, key: key, env: env})
}

type fakeCache struct{ m map[int64]Status }

func (c *fakeCache) SetStatus(_ context.Context, id int64, s Status) error {
	c.m[id] = s
	return nil
}

func (c *fakeCache) GetStatus(_ context.Context, id int64) (Status, bool) {
	s, ok := c.m[id]
	return s, ok
}

func newService(policy Policy) (*Service, *memStore, *fakePublisher, *fakeCache) {
	st := newMemStore()
	pub := &fakePublisher{}
	cache := &fakeCache{m: map[int64]Status{}}
	return &Service{
		Repo:      st,
		Events:    pub,
		Cache:     cache,
		Lifecycle: Lifecycle{Policy: policy, Logf: func(string, ...any) {}},
		Producer:  "test",
	}, st, pub, cache
}

func validRequest() CreateRequest {
	return CreateRequest{
		Customer:      Customer{Name: " Ana ", Phone: "343 555", Address: "San Martín 100"},
		PaymentMethod: PaymentTransfer,
		Items: []Line{
			{ProductID: 1, Color: "Negro", Size: "M", Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
			{ProductID: 2, Size: "Único", Quantity: 1, UnitPrice: decimal.RequireFromString("250.00")},
		},
	}
}

func TestCreateRecomputesTotalAndStartsPending(t *testing.T) {
	svc, _, pub, cache := newService(PolicyPermissive)
	req := validRequest()

	o, existed, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "Ana", o.Name)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("450")), o.Total.String())
	assert.Equal(t, StatusPending, cache.m[o.ID])

	require.Len(t, pub.events, 1)
	assert.Equal(t, TopicOrderCreated, pub.events[0].topic)
	assert.Equal(t, EventOrderCreated, pub.events[0].env.EventType)
	assert.Equal(t, fmt.Sprint(o.ID), string(pub.events[0].key))
}

func TestCreateMergesDuplicateLines(t *testing.T) {
	svc, _, _, _ := newService(PolicyPermissive)
	req := validRequest()
	req.Items = append(req.Items, Line{ProductID: 1, Color: "Negro ", Size: "M", Quantity: 1, UnitPrice: decimal.RequireFromString("100")})

	o, _, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("550")))
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"no items", func(r *CreateRequest) { r.Items = nil }, ErrEmptyOrder},
		{"no name", func(r *CreateRequest) { r.Name = "  " }, ErrMissingCustomer},
		{"no address", func(r *CreateRequest) { r.Address = "" }, ErrMissingCustomer},
		{"bad payment", func(r *CreateRequest) { r.PaymentMethod = "Bitcoin" }, ErrInvalidPayment},
		{"zero qty", func(r *CreateRequest) { r.Items[0].Quantity = 0 }, ErrInvalidLine},
		{"no size", func(r *CreateRequest) { r.Items[1].Size = "" }, ErrInvalidLine},
		{"no product", func(r *CreateRequest) { r.Items[0].ProductID = 0 }, ErrInvalidLine},
		{"negative price", func(r *CreateRequest) { r.Items[0].UnitPrice = decimal.NewFromInt(-1) }, ErrInvalidLine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, pub, _ := newService(PolicyPermissive)
			req := validRequest()
			tc.mutate(&req)
			_, _, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidationError(err))
			assert.Empty(t, st.orders)
			assert.Empty(t, pub.events)
		})
	}
}

func TestCreateStoreFailureLeavesNothing(t *testing.T) {
	svc, st, pub, _ := newService(PolicyPermissive)
	st.fail = errors.New("connection refused")
	_, _, err := svc.Create(context.Background(), validRequest())
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Empty(t, pub.events)
}

func TestCreateIsIdempotentOnExternalID(t *testing.T) {
	svc, _, pub, _ := newService(PolicyPermissive)
	req := validRequest()
	req.ExternalID = "abc-1"

	first, _, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	again, existed, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, pub.events, 1)
}

// The default policy accepts PENDIENTE -> CONFIRMADO -> CANCELADO, and also
// paths outside the intended lifecycle such as ENTREGADO -> PENDIENTE.
func TestPermissiveLifecycleAcceptsAnyChange(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, cache := newService(PolicyPermissive)
	o, _, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	for _, to := range []Status{StatusConfirmed, StatusCancelled, StatusDelivered, StatusPending} {
		got, err := svc.ChangeStatus(ctx, o.ID, to)
		require.NoError(t, err, "-> %s", to)
		assert.Equal(t, to, got.Status)
		assert.Equal(t, to, cache.m[o.ID])
	}
	assert.Len(t, pub.events, 5)
	assert.Equal(t, TopicOrderStatusChanged, pub.events[2].topic)
}

func TestStrictLifecycleRejectsIllegalChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(PolicyStrict)
	o, _, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, o.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, o.ID, StatusPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	got, _ := svc.Get(ctx, o.ID)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestChangeStatusUnknownOrderAndStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(PolicyPermissive)
	_, err := svc.ChangeStatus(ctx, 42, StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	o, _, _ := svc.Create(ctx, validRequest())
	_, err = svc.ChangeStatus(ctx, o.ID, Status("PERDIDO"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSameStatusIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, _ := newService(PolicyStrict)
	o, _, _ := svc.Create(ctx, validRequest())
	_, err := svc.ChangeStatus(ctx, o.ID, StatusPending)
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestAttachProofKeepsStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(PolicyPermissive)
	o, _, _ := svc.Create(ctx, validRequest())
	_, _ = svc.ChangeStatus(ctx, o.ID, StatusShipped)

	got, err := svc.AttachProof(ctx, o.ID, "facturas/42.pdf")
	require.NoError(t, err)
	assert.Equal(t, "facturas/42.pdf", got.ProofRef)
	assert.Equal(t, StatusShipped, got.Status)

	_, err = svc.AttachProof(ctx, o.ID, " ")
	assert.Error(t, err)
	_, err = svc.AttachProof(ctx, 999, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	svc, st, _, cache := newService(PolicyPermissive)
	o, _, _ := svc.Create(ctx, validRequest())

	cache.m[o.ID] = StatusShipped
	got, err := svc.Status(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got)

	delete(cache.m, o.ID)
	got, err = svc.Status(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, st.orders[o.ID].Status, got)
	assert.Equal(t, StatusPending, cache.m[o.ID])
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newService(PolicyPermissive)
	_, err := svc.List(context.Background(), ListFilter{Status: "X"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

type fakeCatalog map[int64]catalog.Product

func (f fakeCatalog) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return catalog.Normalize(p), nil
}

func shopCatalog() fakeCatalog {
	return fakeCatalog{
		1: {ID: 1, Name: "Remera", Price: decimal.RequireFromString("120.00"), Active: true,
			Variants: []catalog.Variant{{Color: "Negro", StockBySize: catalog.StockBySize{{Size: "M", Qty: 0}}}}},
		2: {ID: 2, Name: "Gorra", Price: decimal.RequireFromString("250.00"), Stock: 3, Active: true},
		3: {ID: 3, Name: "Vieja", Price: decimal.RequireFromString("1.00"), Stock: 3},
	}
}

func TestCreatePricesLinesFromCatalog(t *testing.T) {
	svc, _, _, _ := newService(PolicyPermissive)
	svc.Catalog = shopCatalog()
	req := validRequest()
	req.Items[0].UnitPrice = decimal.Zero
	req.Items[0].Name = "gratis"
	req.Items[1].Size = "Único"
	req.Items = append(req.Items, Line{ProductID: 2, Color: "Rojo", Size: "Único", Quantity: 2})

	o, _, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Remera", o.Items[0].Name)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("120")))
	assert.Equal(t, 3, o.Items[1].Quantity, "color of a colorless product is dropped and lines merge")
	assert.Empty(t, o.Items[1].Color)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("990")), o.Total.String())
}

func TestCreateRejectsProductsNotForSale(t *testing.T) {
	cases := []struct {
		name string
		line Line
		want error
	}{
		{"unknown", Line{ProductID: 999999, Size: "Único", Quantity: 50}, ErrUnknownProduct},
		{"inactive", Line{ProductID: 3, Size: "Único", Quantity: 1}, ErrUnknownProduct},
		{"size not offered", Line{ProductID: 1, Color: "Negro", Size: "XXL", Quantity: 1}, ErrInvalidLine},
		{"color not offered", Line{ProductID: 1, Color: "Verde", Size: "M", Quantity: 1}, ErrInvalidLine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, pub, _ := newService(PolicyPermissive)
			svc.Catalog = shopCatalog()
			req := validRequest()
			req.Items = []Line{tc.line}
			_, _, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidationError(err))
			assert.Empty(t, st.orders)
			assert.Empty(t, pub.events)
		})
	}
}

type fakeCatalogDown struct{}

func (fakeCatalogDown) GetProduct(context.Context, int64) (catalog.Product, error) {
	return catalog.Product{}, errors.New("timeout")
}

func TestCreateCatalogFailureIsNotAValidationError(t *testing.T) {
	svc, st, _, _ := newService(PolicyPermissive)
	svc.Catalog = fakeCatalogDown{}
	_, _, err := svc.Create(context.Background(), validRequest())
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Empty(t, st.orders)
}

type memReplays map[string]int64

func (m memReplays) Lookup(_ context.Context, ext string) (int64, bool) {
	id, ok := m[ext]
	return id, ok
}

func (m memReplays) Remember(_ context.Context, ext string, id int64) error {
	m[ext] = id
	return nil
}

func TestReplayIndexAnswersBeforeValidation(t *testing.T) {
	ctx := context.Background()
	svc, st, pub, _ := newService(PolicyPermissive)
	idx := memReplays{}
	svc.Replays = idx
	req := validRequest()
	req.ExternalID = "chk-1"

	first, _, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, idx["chk-1"])

	again, existed, err := svc.Create(ctx, CreateRequest{ExternalID: "chk-1"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, st.orders, 1)
	assert.Len(t, pub.events, 1)

	idx["stale"] = first.ID
	_, _, err = svc.Create(ctx, CreateRequest{ExternalID: "stale"})
	assert.ErrorIs(t, err, ErrMissingCustomer)
}

func TestStatusChangedEventCarriesLines(t *testing.T) {
	ctx := context.Background()
	svc, _, pub, _ := newService(PolicyPermissive)
	o, _, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	var p StatusChangedPayload
	require.NoError(t, json.Unmarshal(pub.events[1].env.Payload, &p))
	assert.Equal(t, StatusPending, p.From)
	assert.Equal(t, StatusCancelled, p.To)
	assert.Len(t, p.Items, 2)
}
