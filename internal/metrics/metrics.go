package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_jobs_submitted_total",
		Help: "Total number of jobs accepted by the download server",
	}, []string{"service"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_jobs_completed_total",
		Help: "Total number of jobs that reached the completed state",
	}, []string{"service"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_jobs_failed_total",
		Help: "Total number of jobs that reached the failed state",
	}, []string{"service"})

	Polls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_polls_total",
		Help: "Total number of status requests sent",
	})

	GallerySaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_gallery_saves_failed_total",
		Help: "Total number of completed jobs whose video could not be written to the media library",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipfetch_job_duration_seconds",
		Help:    "Time from submission to a terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	FetchedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_fetched_bytes_total",
		Help: "Total bytes of finished files copied to this device",
	})
)

// WriteFile dumps the default registry in text exposition format.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
