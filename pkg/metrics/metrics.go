package metrics

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// Registry holds every collector of this process; both the web host's
	// /api/metrics endpoint and the Pushgateway push read from it.
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	// Buckets sized for multi-megabyte uploads over slow links
	UploadBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34}

	// HTTP Metrics (web host)
	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Submission endpoint client metrics
	SubmitRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthcheck_submit_request_duration_seconds",
			Help:    "Duration of the outbound form submission in seconds",
			Buckets: UploadBuckets,
		},
		[]string{"status"},
	)

	// Business Metrics
	FormSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthcheck_form_submissions_total",
			Help: "Total number of submit triggers by outcome",
		},
		[]string{"status"}, // success, failed, invalid, throttled
	)

	ValidationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthcheck_validation_failures_total",
			Help: "Total number of validation failures by field",
		},
		[]string{"field"},
	)

	FileSelections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthcheck_file_selections_total",
			Help: "Total number of file selection batches by outcome",
		},
		[]string{"status"}, // accepted, rejected, unsupported
	)

	AttachedBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthcheck_submission_payload_bytes",
			Help:    "Size of the attachments sent with a submission",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
	)

	// Infrastructure Metrics
	GoRoutines = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// Push sends the registry to a Prometheus Pushgateway. Short-lived processes
// such as the terminal client call it once before exiting.
func Push(gatewayURL, job, instance string) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, job).Gatherer(Registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
