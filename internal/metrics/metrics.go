// Package metrics collects Prometheus metrics for the board server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/board/internal/domain"
)

type Collector struct {
	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	imageUploads  *prometheus.CounterVec
	imageDeletes  *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_docstore_operations_total",
			Help: "Document store operations by operation and result.",
		}, []string{"operation", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_docstore_operation_seconds",
			Help:    "Document store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "board_live_subscriptions",
			Help: "Open live subscriptions by kind.",
		}, []string{"kind"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_image_uploads_total",
			Help: "Image uploads by result.",
		}, []string{"result"}),
		imageDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_image_deletes_total",
			Help: "Image deletions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeLatency,
		c.httpStatus,
		c.subscriptions,
		c.imageUploads,
		c.imageDeletes,
	)

	return c
}

// ObserveOperation records one document store call.
func (c *Collector) ObserveOperation(op string, elapsed time.Duration, err error) {
	c.storeOps.WithLabelValues(op, result(err)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SubscriptionOpened increments the live subscription gauge and returns the
// matching decrement.
func (c *Collector) SubscriptionOpened(kind string) (closed func()) {
	g := c.subscriptions.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

func (c *Collector) RecordImageUpload(err error) {
	c.imageUploads.WithLabelValues(result(err)).Inc()
}

func (c *Collector) RecordImageDelete(err error) {
	c.imageDeletes.WithLabelValues(result(err)).Inc()
}

// Handler exposes the given gatherer for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	default:
		return "error"
	}
}
