package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var (
	errBadJSON = errors.New("invalid json")
	errBadID   = errors.New("invalid id")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadJSON), errors.Is(err, errBadID):
		code = http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, errDraftNotFound), errors.Is(err, errLineNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrStatusConflict):
		code = http.StatusConflict
	case catalog.IsValidationError(err), orders.IsValidationError(err), errors.Is(err, checkout.ErrEmptyCart):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		logUnexpected(r, err)
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func logUnexpected(r *http.Request, err error) {
	log.Printf("request_id=%s %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
}
