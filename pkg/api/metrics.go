package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Store operation metrics
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	storeBlobsTotal        prometheus.Gauge
	storeDataSizeBytes     prometheus.Gauge
	blobBytesIn            prometheus.Counter
	blobBytesOut           prometheus.Counter

	// Integrity metrics
	corruptionEventsTotal *prometheus.CounterVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "munin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "munin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "munin_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		storeOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "munin_store_operations_total",
				Help: "Total number of blob store operations",
			},
			[]string{"operation", "status"},
		),

		storeOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "munin_store_operation_duration_seconds",
				Help:    "Blob store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		storeBlobsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "munin_store_blobs_total",
				Help: "Total number of blobs in the store index",
			},
		),

		storeDataSizeBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "munin_store_data_size_bytes",
				Help: "Size of the message log in bytes",
			},
		),

		blobBytesIn: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "munin_blob_bytes_in_total",
				Help: "Blob content bytes accepted by put operations",
			},
		),

		blobBytesOut: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "munin_blob_bytes_out_total",
				Help: "Blob content bytes served by get operations",
			},
		),

		corruptionEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "munin_corruption_events_total",
				Help: "Corruption events detected while reading the log",
			},
			[]string{"record"},
		),

		authRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "munin_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreOperation records a blob store operation
func (m *Metrics) RecordStoreOperation(operation string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	m.storeOperationsTotal.WithLabelValues(operation, status).Inc()
	m.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateStoreStats updates store statistics gauges
func (m *Metrics) UpdateStoreStats(blobs int, dataSize int64) {
	m.storeBlobsTotal.Set(float64(blobs))
	m.storeDataSizeBytes.Set(float64(dataSize))
}

// RecordBlobBytesIn counts accepted blob content bytes.
func (m *Metrics) RecordBlobBytesIn(n int64) {
	m.blobBytesIn.Add(float64(n))
}

// RecordBlobBytesOut counts served blob content bytes.
func (m *Metrics) RecordBlobBytesOut(n int64) {
	m.blobBytesOut.Add(float64(n))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// Corruption implements format.CorruptionLog: one structured log line and
// one counter increment per corruption event.
func (m *Metrics) Corruption(record, detail string) {
	m.corruptionEventsTotal.WithLabelValues(record).Inc()
	log.Printf("corruption detected record=%q detail=%q", record, detail)
}

// InstrumentHandler instruments an HTTP handler with metrics. A nil Metrics
// leaves the handler bare, which keeps handler tests free of the global
// prometheus registry.
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Wrap the response writer to capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(method, endpoint, rw.statusCode, duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
