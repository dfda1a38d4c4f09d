package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRecorderCapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)

	sr.WriteHeader(http.StatusTeapot)
	n, err := sr.Write([]byte("short and stout"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, sr.Status())
	assert.Equal(t, int64(n), sr.BytesWritten())
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	sr := NewStatusRecorder(httptest.NewRecorder())
	_, err := sr.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, sr.Status())
}

func TestHTTPObsRecordsRouteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("belanja_test", nil, reg)
	obsMW := HTTPObs{Metrics: metrics}

	r := chi.NewRouter()
	r.Use(RoutePatternMiddleware)
	r.Use(obsMW.Middleware)
	r.Get("/products/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/products/blender-dapur", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/products/{slug}", "200"))
	assert.Equal(t, float64(1), count)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPObsWithoutMetricsIsPassthrough(t *testing.T) {
	var called bool
	h := HTTPObs{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestParseBucketsCSV(t *testing.T) {
	assert.Nil(t, ParseBucketsCSV(""))
	assert.Nil(t, ParseBucketsCSV("   "))
	assert.Equal(t, []float64{5, 50, 500}, ParseBucketsCSV("5, 50,500"))
	// Invalid and non-positive entries are skipped.
	assert.Equal(t, []float64{10}, ParseBucketsCSV("abc,-1,0,10"))
}

func TestRoutePatternContextHelpers(t *testing.T) {
	ctx := WithRoutePattern(t.Context(), "/orders/{id}")
	assert.Equal(t, "/orders/{id}", RoutePatternFromContext(ctx))
	assert.Empty(t, RoutePatternFromContext(t.Context()))
	assert.Empty(t, RoutePatternFromContext(nil))
}
