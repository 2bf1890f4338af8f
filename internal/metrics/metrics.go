package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DownloadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_downloads_created_total",
		Help: "Total number of downloads created",
	})

	ResolutionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_resolutions_completed_total",
		Help: "Total number of target resolutions that produced a usable target",
	})

	ResolutionsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_resolutions_canceled_total",
		Help: "Total number of target resolutions terminated by cancellation",
	})

	ResolutionsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_resolutions_blocked_total",
		Help: "Total number of target resolutions terminated by a security block",
	})

	PromptsShown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_prompts_shown_total",
		Help: "Total number of confirmation prompts surfaced to the user",
	})

	DangerousClassified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_dangerous_classified_total",
		Help: "Total number of downloads classified as dangerous",
	})

	ResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "download_resolver_resolution_duration_seconds",
		Help:    "Target resolution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DownloadsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_downloads_completed_total",
		Help: "Total number of downloads whose bytes were fully written",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_downloads_failed_total",
		Help: "Total number of failed downloads",
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_resolver_download_bytes_total",
		Help: "Total bytes downloaded",
	})
)
