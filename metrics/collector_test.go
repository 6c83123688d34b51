package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewCollector()
	c.IncCounter("jobs", map[string]string{"a": "1", "b": "2"})
	c.AddCounter("jobs", 2, map[string]string{"b": "2", "a": "1"})
	c.SetGauge("workers", 4, nil)
	c.SetGauge("workers", 3, nil)

	m, ok := c.GetMetric("jobs", map[string]string{"a": "1", "b": "2"})
	require.True(t, ok)
	assert.Equal(t, 3.0, m.Value)
	assert.Equal(t, TypeCounter, m.Type)

	m, ok = c.GetMetric("workers", nil)
	require.True(t, ok)
	assert.Equal(t, 3.0, m.Value)

	c.Reset()
	assert.Empty(t, c.GetMetrics())
}

func TestHistogramKeepsRecentHistory(t *testing.T) {
	c := NewCollector()
	for i := 0; i < historySize+10; i++ {
		c.ObserveHistogram("latency", 1, nil)
	}
	m, ok := c.GetMetric("latency", nil)
	require.True(t, ok)
	assert.Equal(t, int64(historySize+10), m.Count)
	assert.Equal(t, float64(historySize+10), m.Value)
	assert.Len(t, m.History, historySize)
}

func TestConcurrentUpdates(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordImage("compress", time.Millisecond, 10, "")
			}
		}()
	}
	wg.Wait()

	m, ok := c.GetMetric("image_operations_total", map[string]string{"op": "compress", "outcome": "ok"})
	require.True(t, ok)
	assert.Equal(t, 800.0, m.Value)

	m, ok = c.GetMetric("image_output_bytes_total", map[string]string{"op": "compress"})
	require.True(t, ok)
	assert.Equal(t, 8000.0, m.Value)
}

func TestRecordImageFailure(t *testing.T) {
	c := NewCollector()
	c.RecordImage("crop", time.Millisecond, 0, "decode")

	_, ok := c.GetMetric("image_operations_total", map[string]string{"op": "crop", "outcome": "decode"})
	assert.True(t, ok)
	_, ok = c.GetMetric("image_output_bytes_total", map[string]string{"op": "crop"})
	assert.False(t, ok)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	m, ok := c.GetMetric("http_requests_total", map[string]string{
		"method": http.MethodGet,
		"route":  "/items/{id}",
		"status": "418",
	})
	require.True(t, ok)
	assert.Equal(t, 2.0, m.Value)
}

func TestHandlerFormats(t *testing.T) {
	c := NewCollector()
	c.IncCounter("image_operations_total", map[string]string{"op": "crop", "outcome": "ok"})
	c.ObserveHistogram("image_operation_duration_seconds", 0.5, map[string]string{"op": "crop"})

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, body, `image_operations_total{op="crop",outcome="ok"} 1`)
	assert.Contains(t, body, `image_operation_duration_seconds_sum{op="crop"} 0.5`)
	assert.Contains(t, body, `image_operation_duration_seconds_count{op="crop"} 1`)

	rr = httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics?format=json", nil))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"name":"image_operations_total"`)
}
