package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry holds all Prometheus metrics for the arbitrage service.
// All recording methods tolerate a nil receiver so that metrics remain
// optional wiring.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	OpportunitiesTotal *prometheus.CounterVec
	LastPrice          *prometheus.GaugeVec
	SpreadPct          *prometheus.GaugeVec
	ScansTotal         prometheus.Counter
	UptimeSeconds      prometheus.Gauge
}

// NewRegistry creates a registry with all arbwatcher metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbwatcher_source_requests_total",
				Help: "Total number of requests issued to a price source",
			},
			[]string{"source", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbwatcher_source_request_duration_seconds",
				Help:    "Response time of price source requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"source"},
		),

		OpportunitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbwatcher_opportunities_total",
				Help: "Total number of arbitrage opportunities discovered",
			},
			[]string{"symbol", "buy_exchange", "sell_exchange"},
		),

		LastPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbwatcher_last_price",
				Help: "Last observed price per symbol and source",
			},
			[]string{"symbol", "source"},
		),

		SpreadPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbwatcher_spread_percentage",
				Help: "Last observed cross-source price difference percentage",
			},
			[]string{"symbol"},
		),

		ScansTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbwatcher_scans_total",
				Help: "Total number of scan cycles performed",
			},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbwatcher_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		r.RequestsTotal,
		r.RequestDuration,
		r.OpportunitiesTotal,
		r.LastPrice,
		r.SpreadPct,
		r.ScansTotal,
		r.UptimeSeconds,
	)

	return r
}

// ObserveRequest records one price source request outcome. Latency is only
// observed for successful requests, mirroring the exposition the dashboards
// were built against.
func (r *Registry) ObserveRequest(source string, success bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.RequestsTotal.WithLabelValues(source, status).Inc()
	if success {
		r.RequestDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

// RecordOpportunity counts a discovered opportunity.
func (r *Registry) RecordOpportunity(symbol, buyExchange, sellExchange string) {
	if r == nil {
		return
	}
	r.OpportunitiesTotal.WithLabelValues(symbol, buyExchange, sellExchange).Inc()
}

// SetLastPrice updates the last-seen price gauge.
func (r *Registry) SetLastPrice(source, symbol string, price float64) {
	if r == nil {
		return
	}
	r.LastPrice.WithLabelValues(symbol, source).Set(price)
}

// SetSpread updates the spread percentage gauge for a symbol.
func (r *Registry) SetSpread(symbol string, pct float64) {
	if r == nil {
		return
	}
	r.SpreadPct.WithLabelValues(symbol).Set(pct)
}

// IncScans counts one completed scan cycle.
func (r *Registry) IncScans() {
	if r == nil {
		return
	}
	r.ScansTotal.Inc()
}

// SetUptime publishes service uptime.
func (r *Registry) SetUptime(uptime time.Duration) {
	if r == nil {
		return
	}
	r.UptimeSeconds.Set(uptime.Seconds())
}

// Handler returns the Prometheus exposition handler.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server exposes the registry over HTTP.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer builds the metrics HTTP server on addr.
func NewServer(addr string, registry *Registry, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger.With().Str("component", "metrics_server").Logger(),
	}
}

// Start serves in the background. Listen failures are logged, never fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("metrics endpoint listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics server terminated")
		}
	}()
}

// Shutdown stops the exposition server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
