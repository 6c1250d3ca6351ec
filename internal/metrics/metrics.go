// Package metrics exposes Prometheus instrumentation for the tracking
// pipeline. The collector owns its own registry so tests can construct
// collectors freely without duplicate-registration panics.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	SessionsStarted   prometheus.Counter
	SessionsFinalized *prometheus.CounterVec // reason label: completed|arrived|absent|timeout|evicted|restarted|user_stop|upstream
	LoopIterations    prometheus.Counter
	SpawnFailures     prometheus.Counter

	UpstreamFetchDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hattakip_active_sessions",
			Help: "Number of currently running tracking sessions.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hattakip_sessions_started_total",
			Help: "Total tracking sessions started.",
		}),
		SessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hattakip_sessions_finalized_total",
			Help: "Total tracking sessions finalized, by reason.",
		}, []string{"reason"}),
		LoopIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hattakip_loop_iterations_total",
			Help: "Total tracking loop iterations executed.",
		}),
		SpawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hattakip_spawn_failures_total",
			Help: "Total worker spawn attempts that fell back to inline execution.",
		}),
		UpstreamFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hattakip_upstream_fetch_duration_seconds",
			Help:    "Duration of stop status fetches against the transit service.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.SessionsStarted, c.SessionsFinalized,
		c.LoopIterations, c.SpawnFailures,
		c.UpstreamFetchDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
// The caller shuts the returned server down during graceful exit.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
