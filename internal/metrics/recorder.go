// Package metrics exposes Prometheus counters for document writes, refresh runs,
// signals and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/fundledger/internal/domain"
)

const namespace = "fundledger"

// Recorder implements docstore.WriteObserver and services.RefreshObserver
type Recorder struct {
	registry *prometheus.Registry

	documentWrites  *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	signalsTotal    *prometheus.CounterVec
	confirmed       prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates a recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		documentWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_writes_total",
				Help:      "Document write attempts by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		refreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_runs_total",
				Help:      "Portfolio refresh runs by result",
			},
			[]string{"result"},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of portfolio refresh runs",
				Buckets:   prometheus.DefBuckets,
			},
		),
		signalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signals emitted by type",
			},
			[]string{"type"},
		),
		confirmed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_confirmed_total",
				Help:      "Pending transactions confirmed by the poller",
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry returns the registry the recorder writes to
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveWrite counts one document write attempt
func (r *Recorder) ObserveWrite(path, outcome string) {
	r.documentWrites.WithLabelValues(path, outcome).Inc()
}

// ObserveRefresh records one refresh run
func (r *Recorder) ObserveRefresh(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.refreshTotal.WithLabelValues(result).Inc()
	r.refreshDuration.Observe(duration.Seconds())
}

// ObserveSignal counts one emitted signal
func (r *Recorder) ObserveSignal(signalType domain.SignalType) {
	r.signalsTotal.WithLabelValues(string(signalType)).Inc()
}

// ObserveConfirmed counts transactions confirmed in one poll
func (r *Recorder) ObserveConfirmed(n int) {
	r.confirmed.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency, labelled by the chi route pattern
// to keep cardinality bounded.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}
