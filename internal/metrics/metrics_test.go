package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/metrics"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/products/1", "/api/products/2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/products/{id}", http.MethodGet, "404")))
}

func TestOutcomeCounters(t *testing.T) {
	m := metrics.New()

	m.ObserveCheckout("immediate", "completed")
	m.ObserveCheckout("immediate", "completed")
	m.ObserveWebhook("already_completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("immediate", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Webhooks.WithLabelValues("already_completed")))
}

func TestHandler_Exposition(t *testing.T) {
	m := metrics.New()
	m.ObserveWebhook("completed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `storefront_payment_notifications_total{outcome="completed"} 1`))
}
