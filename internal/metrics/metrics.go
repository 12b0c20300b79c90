// Package metrics provides Prometheus metrics for the harvester.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the harvester.
type Metrics struct {
	// Date metrics
	DatesProcessed prometheus.Counter
	DatesSkipped   *prometheus.CounterVec // reason: date_exists | url_exists | unavailable

	// Granule metrics
	GranulesDownloaded prometheus.Counter
	GranulesSkipped    prometheus.Counter
	RowsAppended       prometheus.Counter

	// Error metrics
	FetchErrors   prometheus.Counter
	ExtractErrors prometheus.Counter

	// Timing
	DownloadDuration prometheus.Histogram
}

// New creates and registers all harvester metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DatesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "dates_processed_total",
			Help:      "Dates walked to completion (including zero-row completions)",
		}),
		DatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "dates_skipped_total",
			Help:      "Dates short-circuited before file processing",
		}, []string{"reason"}),
		GranulesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "granules_downloaded_total",
			Help:      "Granule files downloaded from the archive",
		}),
		GranulesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "granules_skipped_total",
			Help:      "Granule files skipped because the file ledger already had them",
		}),
		RowsAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "rows_appended_total",
			Help:      "Sounding rows appended to the output table",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "fetch_errors_total",
			Help:      "Listing fetches and granule downloads that failed",
		}),
		ExtractErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sif_harvester",
			Name:      "extract_errors_total",
			Help:      "Granules whose field extraction failed",
		}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sif_harvester",
			Name:      "download_duration_seconds",
			Help:      "Time to download one granule",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
		}),
	}
}

// Serve starts an HTTP server exposing /metrics on addr. The returned server
// is already listening; callers shut it down with Close.
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}
