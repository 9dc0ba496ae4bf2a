package httpx

import (
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	f := catalog.Filter{Query: r.URL.Query().Get("q")}
	if c := r.URL.Query().Get("categoria"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			writeError(w, r, errBadID)
			return
		}
		f.CategoryID = id
	}
	a.writeProducts(w, r, f)
}

func (a *API) adminListProducts(w http.ResponseWriter, r *http.Request) {
	a.writeProducts(w, r, catalog.Filter{Query: r.URL.Query().Get("q"), IncludeInactive: true})
}

func (a *API) writeProducts(w http.ResponseWriter, r *http.Request, f catalog.Filter) {
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	ps, err := a.Catalog.ListProducts(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.GetProduct(ctx, id)
	if err == nil && !p.Active {
		err = catalog.ErrProductNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) replaceVariants(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var variants []catalog.Variant
	if err := decode(r, &variants); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.ReplaceVariants(ctx, id, variants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.CreateProduct(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in catalog.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.UpdateProduct(ctx, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) toggleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	p, err := a.Catalog.ToggleActive(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r.Context())
	defer cancel()

	if err := a.Catalog.DeleteProduct(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
