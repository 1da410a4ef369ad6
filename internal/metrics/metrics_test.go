package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareRecordsRoutePattern(t *testing.T) {
	reg := NewRegistry()

	r := chi.NewRouter()
	r.Use(reg.HTTP.Middleware)
	r.Get("/videos/category/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/category/42", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(reg.HTTP.Requests.WithLabelValues(http.MethodGet, "/videos/category/{id}", "418"))
	require.Equal(t, 2.0, got)
}

func TestRegistryHandlerExposesCatalogMetrics(t *testing.T) {
	reg := NewRegistry()
	reg.Catalog.Hits.WithLabelValues("video").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `mediahub_catalog_cache_hits_total{kind="video"} 1`))
}
