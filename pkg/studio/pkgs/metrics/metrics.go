// Package metrics provides Prometheus metrics for the inkwell server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Content operation metrics
	contentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_content_operations_total",
			Help: "Total content operations by result",
		},
		[]string{"operation", "result"},
	)

	contentOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_content_operation_duration_seconds",
			Help:    "Content operation duration in seconds, lock wait included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_content_bytes_uploaded_total",
			Help: "Total bytes committed by uploads",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Middleware records every request under its route template so that slugs
// and paths do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Observer feeds workspace telemetry into the collectors above.
type Observer struct{}

var _ content.Observer = Observer{}

func (Observer) ObserveOperation(op string, err error, elapsed time.Duration) {
	contentOperationsTotal.WithLabelValues(op, content.ResultLabel(err)).Inc()
	contentOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (Observer) ObserveUpload(bytes int64) {
	contentBytesUploaded.Add(float64(bytes))
}
