// Package metrics exposes the Prometheus metrics registered by the client,
// cache, ratelimit and pagination packages.
//
// Metrics are declared with promauto next to the code that records them:
//
// Requests (pkg/client):
//   - relaxflow_requests_total{endpoint, status}
//   - relaxflow_request_duration_seconds{endpoint}
//   - relaxflow_errors_total{class}
//   - relaxflow_retries_total{error_class}
//   - relaxflow_retry_backoff_seconds{error_class}
//   - relaxflow_retry_exhausted_total{error_class}
//
// Cache (pkg/cache):
//   - relaxflow_cache_hits_total, relaxflow_cache_misses_total
//   - relaxflow_cache_entry_bytes
//   - relaxflow_conditional_requests_total, relaxflow_304_responses_total
//   - relaxflow_cache_errors_total{operation}
//
// Rate limit (pkg/ratelimit):
//   - relaxflow_rate_limit_remaining
//   - relaxflow_rate_limit_blocks_total, relaxflow_rate_limit_throttles_total
//
// Listings (pkg/pagination):
//   - relaxflow_list_fetches_total{collection, outcome}
//   - relaxflow_list_stale_responses_total{collection}
//
// Example queries:
//
//	# cache hit rate
//	sum(rate(relaxflow_cache_hits_total[5m])) /
//	(sum(rate(relaxflow_cache_hits_total[5m])) + sum(rate(relaxflow_cache_misses_total[5m])))
//
//	# listings answered with "not found"
//	rate(relaxflow_list_fetches_total{outcome="not_found"}[5m])
//
//	# p95 latency
//	histogram_quantile(0.95, rate(relaxflow_request_duration_seconds_bucket[5m]))
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer promauto uses in every package.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMux returns a mux with /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Server exposes NewMux on an address for the lifetime of a command.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates a metrics server listening on addr once started.
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewMux(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen errors are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("Metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", s.srv.Addr).Msg("Metrics server failed")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
