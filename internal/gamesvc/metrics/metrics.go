// Package metrics holds the Prometheus collectors for the game service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordclash_guesses_total",
			Help: "Guesses applied to a session",
		},
		[]string{"result", "grading"},
	)

	turnTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wordclash_turn_timeouts_total",
			Help: "Expired turns penalized by the engine",
		},
	)

	roundsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wordclash_rounds_completed_total",
			Help: "Rounds assigned to a winning team",
		},
	)

	matchesFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordclash_matches_finished_total",
			Help: "Matches that reached a terminal phase",
		},
		[]string{"outcome"},
	)

	revivalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordclash_revivals_total",
			Help: "Team revival attempts",
		},
		[]string{"outcome"},
	)

	lockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wordclash_lock_wait_seconds",
			Help:    "Time spent waiting for a session lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	validatorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wordclash_validator_seconds",
			Help:    "Word validator latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordclash_http_requests_total",
			Help: "HTTP requests served by the game service",
		},
		[]string{"method", "status"},
	)
)

// RecordGuess counts one applied guess.
func RecordGuess(correct, heuristic bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	grading := "model"
	if heuristic {
		grading = "heuristic"
	}
	guessesTotal.WithLabelValues(result, grading).Inc()
}

func RecordTimeout() {
	turnTimeoutsTotal.Inc()
}

func RecordRound() {
	roundsCompletedTotal.Inc()
}

// RecordMatchFinished counts a match by outcome: "won" or "abandoned".
func RecordMatchFinished(outcome string) {
	matchesFinishedTotal.WithLabelValues(outcome).Inc()
}

func RecordRevival(success bool) {
	outcome := "failed"
	if success {
		outcome = "revived"
	}
	revivalsTotal.WithLabelValues(outcome).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func ObserveValidator(d time.Duration) {
	validatorDuration.Observe(d.Seconds())
}

// Middleware counts requests by method and status code.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
