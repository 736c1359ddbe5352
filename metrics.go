package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatgpt_web_requests_total",
		Help: "HTTP requests handled, by endpoint and status code.",
	}, []string{"endpoint", "status"})

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatgpt_web_upstream_duration_seconds",
		Help:    "Latency of calls to the AI provider.",
		Buckets: prometheus.DefBuckets,
	})
)

// statusRecorder captures the status code written by a handler so the
// metrics middleware can label the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// endpointLabel maps a request path onto the fixed endpoint set so that
// arbitrary paths cannot blow up the label cardinality.
func endpointLabel(path string) string {
	switch path {
	case "/", "/metrics", "/api/chat", "/api/regenerate", "/api/image", "/api/system-prompt", "/api/reset":
		return path
	}

	return "other"
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(endpointLabel(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}
