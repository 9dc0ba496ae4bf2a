package httpx

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func openDraft(t *testing.T, e *env) draftView {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/admin/drafts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var v draftView
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func (e *env) draft(t *testing.T, method, path string, body any) (int, draftView) {
	t.Helper()
	resp, b := e.do(t, method, path, body)
	var v draftView
	if resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(b, &v), string(b))
	}
	return resp.StatusCode, v
}

func TestDraftCascadeAndCommit(t *testing.T) {
	e := newEnv(t, orders.PolicyPermissive)
	d := openDraft(t, e)
	base := "/admin/drafts/" + d.ID

	code, v := e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 1, "color": "Gris", "talle": "L"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"Gris"}, v.AvailableColors)
	assert.Equal(t, []string{"S", "L"}, v.AvailableSizes)
	assert.Equal(t, 5, v.CurrentStock)

	code, v = e.draft(t, http.MethodPut, base+"/selection", map[string]any{"cantidad": 9})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, v.Selection.Quantity)

	code, v = e.draft(t, http.MethodPost, base+"/lines", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, "Gris - L", v.Lines[0].Display)
	assert.Equal(t, int64(1), v.Selection.ProductID)
	assert.Empty(t, v.Selection.Size)

	// switching product drops the color
	code, v = e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 2})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, v.Selection.Color)
	assert.Equal(t, []string{catalog.DefaultSize}, v.AvailableSizes)
}

func TestDraftCommitErrors(t *testing.T) {
	e := newEnv(t, orders.PolicyPermissive)
	d := openDraft(t, e)
	base := "/admin/drafts/" + d.ID

	code, _ := e.draft(t, http.MethodPost, base+"/lines", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "no product")

	e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 1, "color": "Gris"})
	code, _ = e.draft(t, http.MethodPost, base+"/lines", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "no size")

	// product 3 is inactive and absent from the snapshot
	e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 3})
	code, _ = e.draft(t, http.MethodPost, base+"/lines", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.draft(t, http.MethodDelete, base+"/lines/0", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.draft(t, http.MethodGet, "/admin/drafts/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDraftSubmit(t *testing.T) {
	e := newEnv(t, orders.PolicyPermissive)
	d := openDraft(t, e)
	base := "/admin/drafts/" + d.ID

	e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 2, "cantidad": 3})
	e.draft(t, http.MethodPost, base+"/lines", nil)
	e.draft(t, http.MethodPut, base+"/selection", map[string]any{"productoId": 1, "color": "Gris", "talle": "S"})
	code, v := e.draft(t, http.MethodPost, base+"/lines", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, v.Lines, 2)

	code, v = e.draft(t, http.MethodDelete, base+"/lines/1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, v.Lines, 1)

	resp, _ := e.do(t, http.MethodPost, base+"/submit", map[string]any{"nombreCliente": "Ana"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	code, _ = e.draft(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, code, "draft kept after a rejected submit")

	resp, body := e.do(t, http.MethodPost, base+"/submit", customer)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var o orders.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, orders.PaymentCash, o.PaymentMethod)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "751.5", o.Total.String())

	code, _ = e.draft(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDraftDiscard(t *testing.T) {
	e := newEnv(t, orders.PolicyPermissive)
	d := openDraft(t, e)
	resp, _ := e.do(t, http.MethodDelete, "/admin/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/admin/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDraftStoreExpires(t *testing.T) {
	s := NewDraftStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }
	d := s.open(catalog.NewSnapshot(nil))

	_, err := s.get(d.id)
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	_, err = s.get(d.id)
	assert.ErrorIs(t, err, errDraftNotFound)
}
