package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Issued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladybug_challenges_issued",
		Help: "The total number of challenges issued",
	}, []string{"variant"})

	Solved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladybug_challenges_solved",
		Help: "The total number of challenges solved and committed",
	}, []string{"variant"})

	Failed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladybug_challenges_failed",
		Help: "The total number of wrong answers submitted",
	}, []string{"variant"})

	// SolveTime measures how long a human takes from issuance to the final
	// correct answer (seconds).
	SolveTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ladybug_challenge_solve_seconds",
		Help:    "Time between puzzle issuance and successful solve (seconds)",
		Buckets: prometheus.ExponentialBucketsRange(1, 900, 15),
	}, []string{"variant"})
)
