// Package metrics exposes crawl counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "fmicrawl"

// Metrics holds the crawl metrics.
type Metrics struct {
	FetchesTotal         *prometheus.CounterVec
	FetchDurationSeconds *prometheus.HistogramVec
	ItemsTotal           *prometheus.CounterVec
	LinksTotal           *prometheus.CounterVec
	FrontierQueued       prometheus.Gauge
	RunsTotal            *prometheus.CounterVec
	LastRunTimestamp     prometheus.Gauge
}

// NewMetrics creates and registers the crawl metrics on reg. A nil reg
// means the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetches_total",
				Help:      "Requests processed, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		FetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time spent downloading a response.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "items_total",
				Help:      "Items written to the output, by kind.",
			},
			[]string{"kind"},
		),
		LinksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "links_total",
				Help:      "Discovered links, by policy decision.",
			},
			[]string{"decision"},
		),
		FrontierQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "frontier_queued",
				Help:      "Requests waiting in the frontier.",
			},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Finished crawl runs, by status.",
			},
			[]string{"status"},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last crawl run finished.",
			},
		),
	}
}

// Serve exposes /metrics from g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Exposing Prometheus metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
