// Package metrics provides Prometheus metrics for the gallery server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hydration outcomes
const (
	OutcomeOK        = "ok"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_listings_total",
			Help: "Total number of folder listings by backend",
		},
		[]string{"backend", "status"},
	)

	listingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iron_gallery_listing_duration_seconds",
			Help:    "Folder listing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_backend_calls_total",
			Help: "Total number of backend calls other than listings",
		},
		[]string{"backend", "operation", "status"},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iron_gallery_bytes_downloaded_total",
			Help: "Total image bytes downloaded from the backend",
		},
	)

	hydrationBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iron_gallery_hydration_batches_total",
			Help: "Total number of hydration batches completed",
		},
	)

	hydratedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_hydrated_entries_total",
			Help: "Total number of hydrated entries by outcome",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_cache_lookups_total",
			Help: "Byte cache lookups by result",
		},
		[]string{"result"},
	)

	decryptionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iron_gallery_decryption_failures_total",
			Help: "Total number of failed decryptions",
		},
	)

	relayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_relay_requests_total",
			Help: "Relay requests by response status",
		},
		[]string{"status"},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iron_gallery_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iron_gallery_sse_events_total",
			Help: "Total SSE events published by type",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordListing records a folder listing.
func RecordListing(backend string, duration time.Duration, success bool) {
	listingsTotal.WithLabelValues(backend, status(success)).Inc()
	listingDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordBackendCall records a direct-link, download, delete or validate call.
func RecordBackendCall(backend, operation string, success bool) {
	backendCallsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}

// RecordDownload records downloaded bytes.
func RecordDownload(bytes int) {
	bytesDownloaded.Add(float64(bytes))
}

// RecordHydrationBatch records one completed batch.
func RecordHydrationBatch() {
	hydrationBatchesTotal.Inc()
}

// RecordHydratedEntry records the outcome of one entry.
func RecordHydratedEntry(outcome string) {
	hydratedEntriesTotal.WithLabelValues(outcome).Inc()
}

// RecordHydratedEntries records n entries with the same outcome.
func RecordHydratedEntries(outcome string, n int) {
	if n > 0 {
		hydratedEntriesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordCacheLookup records a byte cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordDecryptionFailure records a failed decryption.
func RecordDecryptionFailure() {
	decryptionFailuresTotal.Inc()
}

// RecordRelay records a relay response status.
func RecordRelay(code int) {
	relayRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}
