package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "MarketLens/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketlens",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status", "class"},
	)

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "marketlens",
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests",
		},
		[]string{"route", "method"},
	)

	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketlens",
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"route", "method", "status", "class"},
	)

	registerOnce sync.Once
)

// Metrics is a net/http middleware that records request metrics. Scan runs
// can take seconds, so the duration buckets reach 10s. Note: report routes
// carry a date segment, so the route label grows by one series per trading
// day per route.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight, httpResponseSize)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Echo's route template is not visible from a net/http
			// middleware, so the label is the raw path.
			route := r.URL.Path
			method := r.Method

			httpInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			status := strconv.Itoa(rec.code)
			class := statusClass(rec.code)

			httpRequestsTotal.WithLabelValues(route, method, status).Inc()
			httpRequestDuration.WithLabelValues(route, method, status, class).Observe(elapsed.Seconds())
			httpResponseSize.WithLabelValues(route, method, status, class).Observe(float64(rec.bytes))
			httpInFlight.WithLabelValues(route, method).Dec()

			logOutcome(l, route, method, status, rec, elapsed, slowThreshold)
		})
	}
}

// logOutcome reports server errors and slow requests through the app
// logger. Everything else is left to the request logging middleware.
func logOutcome(l *applogger.Logger, route, method, status string, rec *statusRecorder, elapsed, slowThreshold time.Duration) {
	if l == nil {
		return
	}

	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.String("status", status),
		applogger.Duration("duration_ms", elapsed),
		applogger.Int("bytes", rec.bytes),
	}

	switch {
	case rec.code >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && elapsed >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}

// statusRecorder captures the response code and body size for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func statusClass(code int) string {
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}
