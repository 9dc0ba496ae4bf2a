package httpx

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type CatalogRepo interface {
	ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	ReplaceVariants(ctx context.Context, productID int64, variants []catalog.Variant) (catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.ProductInput) (catalog.Product, error)
	ToggleActive(ctx context.Context, id int64) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type OrderService interface {
	Create(ctx context.Context, req orders.CreateRequest) (orders.Order, bool, error)
	Get(ctx context.Context, id int64) (orders.Order, error)
	List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error)
	Status(ctx context.Context, id int64) (orders.Status, error)
	ChangeStatus(ctx context.Context, id int64, to orders.Status) (orders.Order, error)
	AttachProof(ctx context.Context, id int64, ref string) (orders.Order, error)
}

// CartOpener loads the cart of one browser session.
type CartOpener func(ctx context.Context, session string) *cart.Store

type API struct {
	Catalog  CatalogRepo
	Orders   OrderService
	Carts    CartOpener
	Checkout *checkout.Service
	Drafts   *DraftStore
	Timeout  time.Duration
}

func (a *API) Register(r chi.Router) {
	r.Get("/products", a.listProducts)
	r.Get("/products/{id}", a.getProduct)

	r.Route("/cart", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", a.getCart)
		r.Delete("/", a.clearCart)
		r.Post("/items", a.addCartItem)
		r.Patch("/items", a.updateCartItem)
		r.Delete("/items", a.removeCartItem)
	})
	r.With(requireSession).Post("/checkout", a.checkout)

	r.Post("/orders", a.createOrder)
	r.Get("/orders/{id}/status", a.orderStatus)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/products", a.adminListProducts)
		r.Post("/products", a.createProduct)
		r.Put("/products/{id}", a.updateProduct)
		r.Patch("/products/{id}/toggle", a.toggleProduct)
		r.Delete("/products/{id}", a.deleteProduct)
		r.Put("/products/{id}/variants", a.replaceVariants)

		r.Get("/orders", a.adminListOrders)
		r.Get("/orders/{id}", a.adminGetOrder)
		r.Patch("/orders/{id}/status", a.changeStatus)
		r.Put("/orders/{id}/proof", a.attachProof)

		r.Post("/drafts", a.createDraft)
		r.Get("/drafts/{id}", a.getDraft)
		r.Delete("/drafts/{id}", a.discardDraft)
		r.Put("/drafts/{id}/selection", a.selectDraft)
		r.Post("/drafts/{id}/lines", a.commitDraftLine)
		r.Delete("/drafts/{id}/lines/{index}", a.removeDraftLine)
		r.Post("/drafts/{id}/submit", a.submitDraft)
	})
}

func (a *API) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	d := a.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(parent, d)
}
