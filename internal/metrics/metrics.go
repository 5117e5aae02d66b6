// Package metrics defines the Prometheus instrumentation for the crawler.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aoty_fetches_total",
			Help: "Total page fetches, labeled by HTTP status code.",
		},
		[]string{"status"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aoty_fetch_retries_total",
			Help: "Total fetch attempts that were retried after a transient failure.",
		},
	)

	fetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aoty_fetch_failures_total",
			Help: "Total fetches abandoned after exhausting all retry attempts.",
		},
	)

	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aoty_renders_total",
			Help: "Total headless browser renders, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	albumsScrapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aoty_albums_scraped_total",
			Help: "Total album records extracted this run.",
		},
	)

	albumsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aoty_albums_skipped_total",
			Help: "Total album fetches skipped because prior output already held the URL.",
		},
	)

	recordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aoty_records_dropped_total",
			Help: "Total records dropped at flush for failing validation.",
		},
	)
)

// ObserveFetch records one completed fetch by status code.
func ObserveFetch(status int) {
	fetchesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveFetchRetry records one retried fetch attempt.
func ObserveFetchRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveFetchFailure records one fetch abandoned after retries.
func ObserveFetchFailure() {
	fetchFailuresTotal.Inc()
}

// ObserveRender records one headless render outcome ("ok", "challenge",
// "error").
func ObserveRender(outcome string) {
	rendersTotal.WithLabelValues(outcome).Inc()
}

// ObserveAlbumScraped records one extracted album.
func ObserveAlbumScraped() {
	albumsScrapedTotal.Inc()
}

// ObserveAlbumSkipped records one album skipped via resume data.
func ObserveAlbumSkipped() {
	albumsSkippedTotal.Inc()
}

// ObserveRecordsDropped records records dropped at flush.
func ObserveRecordsDropped(n int) {
	if n > 0 {
		recordsDroppedTotal.Add(float64(n))
	}
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
