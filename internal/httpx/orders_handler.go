package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// createOrder accepts an order built by the client. The Idempotency-Key
// header becomes the order's external id; a replay answers 200 with the
// stored order.
func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if k := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)); k != "" {
		req.ExternalID = k
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	o, existed, err := a.Orders.Create(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (a *API) orderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	st, err := a.Orders.Status(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "estado": st})
}

func (a *API) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := orders.ListFilter{Search: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("estado"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f.Status = st
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	list, err := a.Orders.List(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	o, err := a.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"estado"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := orders.ParseStatus(body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	o, err := a.Orders.ChangeStatus(ctx, id, st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) attachProof(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Ref string `json:"facturaUrl"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	o, err := a.Orders.AttachProof(ctx, id, body.Ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
