// Package metrics keeps in-process counters and timings for the HTTP API and
// the image pipeline, and exports them as JSON or Prometheus text.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leeforge/huddle-media/json"
)

// 指标类型
const (
	TypeCounter   = "counter"
	TypeGauge     = "gauge"
	TypeHistogram = "histogram"
)

// historySize bounds how many observations a histogram keeps.
const historySize = 100

// Collector 指标收集器
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Count     int64             `json:"count,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter 增加计数器
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter 增加计数器值
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.get(name, TypeCounter, labels)
	m.Value += value
}

// SetGauge 设置仪表值
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.get(name, TypeGauge, labels)
	m.Value = value
}

// ObserveHistogram records one observation. Value holds the running sum and
// Count the number of observations; History keeps the most recent ones.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.get(name, TypeHistogram, labels)
	m.Value += value
	m.Count++
	m.History = append(m.History, value)
	if len(m.History) > historySize {
		m.History = m.History[len(m.History)-historySize:]
	}
}

// get returns the metric for name and labels, creating it if needed. The
// caller holds the write lock.
func (c *Collector) get(name, typ string, labels map[string]string) *Metric {
	key := buildKey(name, labels)
	m, ok := c.metrics[key]
	if !ok {
		m = &Metric{Name: name, Type: typ, Labels: copyLabels(labels)}
		c.metrics[key] = m
	}
	m.Timestamp = time.Now().Unix()
	return m
}

// RecordRequest 记录 HTTP 请求
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	labels := map[string]string{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}

	c.IncCounter("http_requests_total", labels)
	c.ObserveHistogram("http_request_duration_seconds", duration.Seconds(), map[string]string{
		"method": method,
		"route":  route,
	})
}

// RecordImage records one pipeline operation (compress, crop, batch) with
// its outcome, the error type on failure, and the encoded size on success.
func (c *Collector) RecordImage(op string, duration time.Duration, outputBytes int, errType string) {
	outcome := "ok"
	if errType != "" {
		outcome = errType
	}
	c.IncCounter("image_operations_total", map[string]string{"op": op, "outcome": outcome})
	c.ObserveHistogram("image_operation_duration_seconds", duration.Seconds(), map[string]string{"op": op})
	if errType == "" {
		c.AddCounter("image_output_bytes_total", float64(outputBytes), map[string]string{"op": op})
	}
}

// buildKey 构建指标键, labels sorted so equal label sets share a key.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + labels[k])
	}
	return sb.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetMetrics 获取所有指标 (副本)
func (c *Collector) GetMetrics() map[string]Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		m := *v
		m.History = append([]float64(nil), v.History...)
		result[k] = m
	}
	return result
}

// GetMetric 获取单个指标
func (c *Collector) GetMetric(name string, labels map[string]string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return Metric{}, false
	}
	return *m, true
}

// Reset 重置指标
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// Middleware records every request under its chi route pattern, so path
// parameters do not explode the label space.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.RecordRequest(r.Method, route, ww.statusCode, time.Since(start))
	})
}

// responseWriter 包装器
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Handler serves the metrics as Prometheus text, or as JSON when the
// request asks for it with ?format=json.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "json" {
			raw, err := json.Marshal(c.GetMetrics())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(c.PrometheusFormat()))
	})
}

// PrometheusFormat renders the metrics in the Prometheus text format,
// sorted by key. Histograms are exported as _sum and _count.
func (c *Collector) PrometheusFormat() string {
	metrics := c.GetMetrics()
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		m := metrics[key]
		labels := formatLabels(m.Labels)
		switch m.Type {
		case TypeHistogram:
			fmt.Fprintf(&sb, "%s_sum%s %g\n", m.Name, labels, m.Value)
			fmt.Fprintf(&sb, "%s_count%s %d\n", m.Name, labels, m.Count)
		default:
			fmt.Fprintf(&sb, "%s%s %g\n", m.Name, labels, m.Value)
		}
	}
	return sb.String()
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strconv.Quote(labels[k]))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}
