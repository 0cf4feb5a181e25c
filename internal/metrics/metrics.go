package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExtractRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stargazer_extract_runs_total",
		Help: "Total extraction runs (all repos)",
	})
	ExtractErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_extract_errors_total",
		Help: "Total failed extractions",
	}, []string{"repo"})
	PagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_pages_fetched_total",
		Help: "Total stargazer pages fetched",
	}, []string{"repo"})
	RecordsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_records_fetched_total",
		Help: "Total stargazer records fetched",
	}, []string{"repo"})
	RateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stargazer_rate_limit_waits_total",
		Help: "Times extraction paused for a rate-limit reset",
	})
	APIRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stargazer_api_retries_total",
		Help: "Total API retry attempts",
	})
	LoadedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_loaded_rows_total",
		Help: "Rows loaded into raw partitions",
	}, []string{"repo"})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stargazer_run_duration_seconds",
		Help:    "Full pipeline run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargazer_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		ExtractRuns, ExtractErrors, PagesFetched, RecordsFetched,
		RateLimitWaits, APIRetries, LoadedRows, RunDuration,
		CommandRuns, CommandErrors,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveRunDuration records a full-run duration.
func ObserveRunDuration(start time.Time) {
	RunDuration.Observe(time.Since(start).Seconds())
}

// IncCommandRun increments the run counter for a CLI command.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the error counter for a CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
