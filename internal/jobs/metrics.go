package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "jobs_submitted_total",
			Help:      "Job submissions by type and whether an existing job was reused",
		},
		[]string{"type", "deduplicated"},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status",
		},
		[]string{"type", "status"},
	)

	jobsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "jobs_swept_total",
			Help:      "Stale jobs failed by the sweeper",
		},
	)
)
