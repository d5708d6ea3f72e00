package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingscrape_searches_total",
			Help: "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingscrape_search_attempts_total",
			Help: "Outbound results-page requests by HTTP status (\"error\" for transport failures)",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bingscrape_search_duration_seconds",
			Help:    "Wall-clock duration of searches including rate-limit waits and retries",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bingscrape_results_returned",
			Help:    "Number of results returned per successful search",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
	)

	ChallengesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingscrape_challenges_detected_total",
			Help: "Results pages recognised as bot challenges, by source",
		},
		[]string{"source"},
	)
)

// RecordSearch updates the per-search metrics. outcome is "ok" or the
// failure kind.
func RecordSearch(outcome string, duration time.Duration, results int) {
	SearchesTotal.WithLabelValues(outcome).Inc()
	SearchDuration.Observe(duration.Seconds())
	if outcome == "ok" {
		ResultsReturned.Observe(float64(results))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
