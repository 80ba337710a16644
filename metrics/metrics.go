// Package metrics exposes optional Prometheus instrumentation of a
// tournament: match counts, per-bot error counts, and match duration. It
// is purely additive: a Referee runs identically whether or not a
// Recorder is attached.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the Prometheus collectors for one tournament run. The
// zero value is not usable; construct with NewRecorder.
type Recorder struct {
	registry *prometheus.Registry

	matchesPlayed prometheus.Counter
	botErrors     *prometheus.CounterVec
	matchDuration prometheus.Histogram
}

// NewRecorder registers a fresh set of collectors on their own registry,
// so that multiple Recorders (e.g. in tests) never collide on the default
// global registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		matchesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referee_matches_played_total",
			Help: "Total number of matches completed.",
		}),
		botErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referee_bot_errors_total",
			Help: "Total bot errors by seat and error kind.",
		}, []string{"bot", "kind"}),
		matchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "referee_match_duration_seconds",
			Help:    "Wall-clock duration of a single match.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(r.matchesPlayed, r.botErrors, r.matchDuration)
	return r
}

// ErrorKinds lists the label values used with botErrors, matching the
// protocol package's four error counters.
var ErrorKinds = []string{"protocol_error", "illegal_actions", "ponder_error", "time_over"}

// RecordMatch increments matchesPlayed, observes duration, and adds
// errorCounts[bot][kind] to the corresponding botErrors series.
func (r *Recorder) RecordMatch(duration time.Duration, errorCounts [][4]int) {
	r.matchesPlayed.Inc()
	r.matchDuration.Observe(duration.Seconds())
	for bot, counts := range errorCounts {
		for i, kind := range ErrorKinds {
			if counts[i] > 0 {
				r.botErrors.WithLabelValues(strconv.Itoa(bot), kind).Add(float64(counts[i]))
			}
		}
	}
}

// Serve starts an HTTP server exposing the registry at /metrics on addr.
// It blocks until ctx is cancelled, then shuts the server down.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
