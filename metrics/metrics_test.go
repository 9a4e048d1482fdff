package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "other",
		"/":                           "other",
		"/wp-admin/setup.php":         "other",
		"/api/orders/o1/../../etc":    "other",
		"/.env":                       "other",
		"/api/menu":                   "/api/menu",
		"/api/orders/abc-123":         "/api/orders/:id",
		"/api/orders/abc-123/track":   "/api/orders/:id/track",
		"/api/cart/items/x9":          "/api/cart/items/:id",
		"/api/admin/orders/o1/status": "/api/admin/orders/:id/status",
		"/static/uploads/photo/a.png": "/static/uploads",
	}
	for in, want := range cases {
		assert.Equal(t, want, canonicalPath(in), in)
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/orders/:id", "418"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/o-1", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/orders/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesAppMetrics(t *testing.T) {
	OrdersPlaced.WithLabelValues("UPI").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "foodcart_orders_placed_total"))
}
