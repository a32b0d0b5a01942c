// Package metrics defines the Prometheus collectors for the service and the
// HTTP middleware that feeds them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soilmap"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
	}, []string{"method", "path"})

	// Map pipeline metrics
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "map",
		Name:      "uploads_total",
		Help:      "CSV uploads by dataset and outcome",
	}, []string{"dataset", "result"})

	RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "map",
		Name:      "rows_skipped_total",
		Help:      "Rows skipped because of unusable coordinates",
	}, []string{"dataset"})

	ManualPointsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "map",
		Name:      "manual_points_total",
		Help:      "Manual points added",
	})

	ComposeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "map",
		Name:      "compose_duration_seconds",
		Help:      "Time to rebuild the map surface from session state",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// Export metrics
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "total",
		Help:      "Map exports by format and outcome",
	}, []string{"format", "result"})

	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "duration_seconds",
		Help:      "Time to rasterize and encode an export",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"backend"})

	RenderSlotsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "render_slots_active",
		Help:      "Rasterizations currently holding a render slot",
	})

	RenderSlotWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "render_slot_wait_seconds",
		Help:      "Time exports spent queueing for a render slot",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{"result"})
)

// RenderSlots feeds render slot events from core.RenderLimiter into the
// render slot collectors.
type RenderSlots struct{}

// SlotWaited records how long an export queued and whether it got a slot.
func (RenderSlots) SlotWaited(d time.Duration, err error) {
	result := "acquired"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	case err != nil:
		result = "rejected"
	}
	RenderSlotWait.WithLabelValues(result).Observe(d.Seconds())
}

// SlotsActive sets the occupied slot gauge.
func (RenderSlots) SlotsActive(n int) {
	RenderSlotsActive.Set(float64(n))
}

// ObserveExport records the outcome of one export.
func ObserveExport(format, backend string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExportsTotal.WithLabelValues(format, result).Inc()
	if err == nil {
		ExportDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
}

// ObserveUpload records the outcome of one upload.
func ObserveUpload(dataset string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	UploadsTotal.WithLabelValues(dataset, result).Inc()
}

// Middleware records request metrics, labelled with the chi route pattern
// to keep path cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(ww.BytesWritten()))
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
