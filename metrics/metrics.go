// Package metrics exposes the storefront's Prometheus collectors.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foodcart"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders placed, by payment method.",
		},
		[]string{"payment_method"},
	)

	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Order status changes made by admins.",
		},
		[]string{"from", "to"},
	)

	NotificationBadge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "badge",
			Help:      "Orders waiting in the admin notification feed.",
		},
	)

	LiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		},
	)

	MenuCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "menu_cache",
			Name:      "lookups_total",
			Help:      "Menu cache lookups, by result.",
		},
		[]string{"result"},
	)

	EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Domain events forwarded to message sinks.",
		},
		[]string{"sink", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		OrdersPlaced,
		StatusTransitions,
		NotificationBadge,
		LiveClients,
		MenuCache,
		EventsEmitted,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordEmit counts one event forwarded to sink.
func RecordEmit(sink string, err error) {
	EventsEmitted.WithLabelValues(sink, strconv.FormatBool(err == nil)).Inc()
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// otherPath labels requests that match no route.
const otherPath = "other"

var routePaths = map[string]bool{
	"/health":                      true,
	"/metrics":                     true,
	"/api/menu":                    true,
	"/api/payment-methods":         true,
	"/api/statuses":                true,
	"/api/cart":                    true,
	"/api/cart/items":              true,
	"/api/cart/items/:id":          true,
	"/api/checkout":                true,
	"/api/orders/:id":              true,
	"/api/orders/:id/track":        true,
	"/api/orders/:id/receipt":      true,
	"/api/admin/menu":              true,
	"/api/admin/orders":            true,
	"/api/admin/orders/:id/status": true,
	"/api/admin/notifications":     true,
	"/ws/admin":                    true,
	"/ws/orders/:id":               true,
	"/static/uploads":              true,
}

// canonicalPath collapses ids so label cardinality stays bounded:
// /api/orders/abc/track becomes /api/orders/:id/track. Anything that is
// not a known route becomes "other".
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return otherPath
	}
	parts := strings.Split(trimmed, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "orders", "items":
			parts[i] = ":id"
		case "uploads":
			parts = parts[:i]
		}
		if i >= len(parts) {
			break
		}
	}
	p := "/" + strings.Join(parts, "/")
	if !routePaths[p] {
		return otherPath
	}
	return p
}
