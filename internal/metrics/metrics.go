// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal          *prometheus.CounterVec
	fetchAttemptDurationSeconds *prometheus.HistogramVec
	chaptersExtractedTotal      prometheus.Counter
	batchCooldownsTotal         prometheus.Counter
	runsTotal                   *prometheus.CounterVec
	runActive                   prometheus.Gauge
	listingPagesTotal           *prometheus.CounterVec
	rateLimitDelaysSeconds      *prometheus.HistogramVec
	headlessPromotionsTotal     *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapter_fetch_attempts_total",
				Help: "Fetch attempts, labeled by site and outcome (success, retryable, terminal).",
			},
			[]string{"site", "outcome"},
		)

		fetchAttemptDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chapter_fetch_attempt_duration_seconds",
				Help:    "Latency of a single fetch attempt including decode and extraction.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		chaptersExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chapters_extracted_total",
				Help: "Chapters whose text was extracted.",
			},
		)

		batchCooldownsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chapter_batch_cooldowns_total",
				Help: "Batch cooldowns taken between chapters.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapter_runs_total",
				Help: "Finished runs, labeled by status.",
			},
			[]string{"status"},
		)

		runActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chapter_run_active",
				Help: "1 while a run is in progress.",
			},
		)

		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_pages_total",
				Help: "Listing pages visited, labeled by outcome (ok, failed).",
			},
			[]string{"outcome"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_headless_promotions_total",
				Help: "Hosts switched from plain HTTP to the headless fetcher.",
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt records one attempt against url.
func ObserveFetchAttempt(rawURL, outcome string, duration time.Duration) {
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	fetchAttemptDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveChapter counts an extracted chapter.
func ObserveChapter() {
	chaptersExtractedTotal.Inc()
}

// ObserveCooldown counts a batch cooldown.
func ObserveCooldown() {
	batchCooldownsTotal.Inc()
}

// RunStarted flips the active gauge on.
func RunStarted() {
	runActive.Set(1)
}

// RunFinished records the run status and flips the active gauge off.
func RunFinished(status string) {
	runActive.Set(0)
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveListingPage counts a listing page visit.
func ObserveListingPage(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	listingPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion counts a host switched to the headless fetcher.
func ObserveHeadlessPromotion(domain string) {
	headlessPromotionsTotal.WithLabelValues(domain).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
