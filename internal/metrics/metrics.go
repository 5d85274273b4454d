// Package metrics exposes Prometheus counters for lookups.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "golyrics"

// Recorder counts extraction outcomes and fetch results per site. A nil
// *Recorder records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	extractions   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New returns a Recorder on its own registry so that several instances can
// coexist in one process.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Extraction outcomes by site",
			},
			[]string{"site", "outcome"},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Failed page fetches by site",
			},
			[]string{"site"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Page fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"site"},
		),
	}
}

// RecordExtraction counts one extraction outcome ("found", "not_found",
// "invalid").
func (r *Recorder) RecordExtraction(site, outcome string) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(site, outcome).Inc()
}

// RecordFetch observes a fetch and counts it as an error when err is set.
func (r *Recorder) RecordFetch(site string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(site).Observe(d.Seconds())
	if err != nil {
		r.fetchErrors.WithLabelValues(site).Inc()
	}
}

// Registry returns the registry the counters live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr at /metrics until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
