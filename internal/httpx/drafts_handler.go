package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/builder"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type draftView struct {
	ID              string            `json:"id"`
	Selection       builder.Selection `json:"seleccion"`
	AvailableColors []string          `json:"coloresDisponibles"`
	AvailableSizes  []string          `json:"tallesDisponibles"`
	CurrentStock    int               `json:"stockActual"`
	Lines           []builder.Line    `json:"lineas"`
	Total           decimal.Decimal   `json:"total"`
}

// view must be called with d.mu held.
func (d *draft) view() draftView {
	v := draftView{
		ID:              d.id,
		Selection:       d.b.Selection(),
		AvailableColors: d.b.AvailableColors(),
		AvailableSizes:  d.b.AvailableSizes(),
		CurrentStock:    d.b.CurrentStock(),
		Lines:           d.b.Lines(),
		Total:           d.b.Total(),
	}
	if v.AvailableColors == nil {
		v.AvailableColors = []string{}
	}
	if v.AvailableSizes == nil {
		v.AvailableSizes = []string{}
	}
	if v.Lines == nil {
		v.Lines = []builder.Line{}
	}
	return v
}

// createDraft snapshots the active catalog; every check in the draft runs
// against that snapshot.
func (a *API) createDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	ps, err := a.Catalog.ListProducts(ctx, catalog.Filter{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	d := a.Drafts.open(catalog.NewSnapshot(ps))
	d.mu.Lock()
	defer d.mu.Unlock()
	writeJSON(w, http.StatusCreated, d.view())
}

// withDraft runs fn under the draft's lock.
func (a *API) withDraft(w http.ResponseWriter, r *http.Request, fn func(d *draft) (int, any, error)) {
	d, err := a.Drafts.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	code, body, err := fn(d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, body)
}

func (a *API) getDraft(w http.ResponseWriter, r *http.Request) {
	a.withDraft(w, r, func(d *draft) (int, any, error) {
		return http.StatusOK, d.view(), nil
	})
}

func (a *API) discardDraft(w http.ResponseWriter, r *http.Request) {
	if !a.Drafts.drop(chi.URLParam(r, "id")) {
		writeError(w, r, errDraftNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectDraft applies the fields of the selection in cascade order: product,
// color, size, quantity. Changing the product or color resets what depends
// on it.
func (a *API) selectDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID *int64  `json:"productoId"`
		Color     *string `json:"color"`
		Size      *string `json:"talle"`
		Quantity  *int    `json:"cantidad"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a.withDraft(w, r, func(d *draft) (int, any, error) {
		cur := d.b.Selection()
		if req.ProductID != nil && *req.ProductID != cur.ProductID {
			d.b.SelectProduct(*req.ProductID)
		}
		if req.Color != nil && *req.Color != d.b.Selection().Color {
			d.b.SelectColor(*req.Color)
		}
		if req.Size != nil {
			d.b.SelectSize(*req.Size)
		}
		if req.Quantity != nil {
			d.b.SetQuantity(*req.Quantity)
		}
		return http.StatusOK, d.view(), nil
	})
}

func (a *API) commitDraftLine(w http.ResponseWriter, r *http.Request) {
	a.withDraft(w, r, func(d *draft) (int, any, error) {
		if _, err := d.b.Commit(); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, d.view(), nil
	})
}

func (a *API) removeDraftLine(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, errBadID)
		return
	}
	a.withDraft(w, r, func(d *draft) (int, any, error) {
		if !d.b.RemoveLine(i) {
			return 0, nil, errLineNotFound
		}
		return http.StatusOK, d.view(), nil
	})
}

type submitDraftReq struct {
	orders.Customer
	PaymentMethod orders.PaymentMethod `json:"metodoPago"`
}

// submitDraft creates the order and drops the draft. On failure the draft
// is kept so the admin can retry.
func (a *API) submitDraft(w http.ResponseWriter, r *http.Request) {
	var req submitDraftReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = orders.PaymentCash
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	a.withDraft(w, r, func(d *draft) (int, any, error) {
		o, _, err := a.Orders.Create(ctx, d.b.Request(req.Customer, req.PaymentMethod))
		if err != nil {
			return 0, nil, err
		}
		a.Drafts.drop(d.id)
		return http.StatusCreated, o, nil
	})
}
