package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const prefix = "auddy_"

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:method:status_class -> count

	// Extraction metrics
	jobOutcomes     map[string]*uint64 // terminal status -> count
	jobRetries      uint64
	attemptDuration *Histogram

	activeWSConnections int64
	queueDepth          int64
	busyWorkers         int64

	gauges   map[string]float64
	counters map[string]*uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu         sync.Mutex
	count      uint64
	sum        float64
	buckets    []float64
	bucketVals []uint64
}

var (
	requestBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// extraction attempts are dominated by network and transcode time
	attemptBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}
)

// NewHistogram creates a histogram with the given upper bounds, or the
// request latency buckets when none are given.
func NewHistogram(buckets ...float64) *Histogram {
	if len(buckets) == 0 {
		buckets = requestBuckets
	}
	return &Histogram{
		buckets:    append([]float64(nil), buckets...),
		bucketVals: make([]uint64, len(buckets)),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

func (h *Histogram) write(sb *strings.Builder, name, labels string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sep := ""
	if labels != "" {
		sep = ","
	}
	for i, bucket := range h.buckets {
		fmt.Fprintf(sb, "%s_bucket{%s%sle=\"%g\"} %d\n", name, labels, sep, bucket, h.bucketVals[i])
	}
	fmt.Fprintf(sb, "%s_bucket{%s%sle=\"+Inf\"} %d\n", name, labels, sep, h.count)
	if labels != "" {
		fmt.Fprintf(sb, "%s_sum{%s} %f\n", name, labels, h.sum)
		fmt.Fprintf(sb, "%s_count{%s} %d\n", name, labels, h.count)
	} else {
		fmt.Fprintf(sb, "%s_sum %f\n", name, h.sum)
		fmt.Fprintf(sb, "%s_count %d\n", name, h.count)
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		jobOutcomes:     make(map[string]*uint64),
		attemptDuration: NewHistogram(attemptBuckets...),
		gauges:          make(map[string]float64),
		counters:        make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

var defaultMetrics = New()

// Default returns the process-wide metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", normalizeEndpoint(path), method)

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	count := m.requestCount[key]
	hist := m.requestDuration[key]
	m.mu.Unlock()

	atomic.AddUint64(count, 1)
	hist.Observe(duration.Seconds())

	if statusCode >= 400 {
		errorKey := fmt.Sprintf("%s:%d", key, statusCode/100)
		m.mu.Lock()
		if m.requestErrors[errorKey] == nil {
			var zero uint64
			m.requestErrors[errorKey] = &zero
		}
		ec := m.requestErrors[errorKey]
		m.mu.Unlock()
		atomic.AddUint64(ec, 1)
	}
}

// RecordJobOutcome counts a job reaching a terminal status.
func (m *Metrics) RecordJobOutcome(status string) {
	m.mu.Lock()
	if m.jobOutcomes[status] == nil {
		var zero uint64
		m.jobOutcomes[status] = &zero
	}
	c := m.jobOutcomes[status]
	m.mu.Unlock()
	atomic.AddUint64(c, 1)
}

// RecordRetry counts an attempt that failed and was scheduled again.
func (m *Metrics) RecordRetry() {
	atomic.AddUint64(&m.jobRetries, 1)
}

// ObserveAttempt records the wall time of a single extraction attempt.
func (m *Metrics) ObserveAttempt(d time.Duration) {
	m.attemptDuration.Observe(d.Seconds())
}

// normalizeEndpoint replaces UUID and numeric path segments with {id}
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
		} else if len(part) > 0 && isNumeric(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	atomic.AddInt64(&m.activeWSConnections, 1)
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	atomic.AddInt64(&m.activeWSConnections, -1)
}

// SetQueueDepth sets the number of extraction tasks waiting for a worker
func (m *Metrics) SetQueueDepth(n int64) {
	atomic.StoreInt64(&m.queueDepth, n)
}

// IncBusyWorkers marks a worker as running a job.
func (m *Metrics) IncBusyWorkers() {
	atomic.AddInt64(&m.busyWorkers, 1)
}

// DecBusyWorkers marks a worker as idle.
func (m *Metrics) DecBusyWorkers() {
	atomic.AddInt64(&m.busyWorkers, -1)
}

// SetGauge sets a gauge value
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// IncCounter increments a counter
func (m *Metrics) IncCounter(name string) {
	m.mu.Lock()
	if m.counters[name] == nil {
		var zero uint64
		m.counters[name] = &zero
	}
	c := m.counters[name]
	m.mu.Unlock()
	atomic.AddUint64(c, 1)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func header(sb *strings.Builder, name, kind, help string) {
	fmt.Fprintf(sb, "# HELP %s%s %s\n", prefix, name, help)
	fmt.Fprintf(sb, "# TYPE %s%s %s\n", prefix, name, kind)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		header(&sb, "uptime_seconds", "gauge", "Time since the process started")
		fmt.Fprintf(&sb, "%suptime_seconds %f\n\n", prefix, time.Since(m.startTime).Seconds())

		header(&sb, "websocket_connections_active", "gauge", "Active WebSocket connections")
		fmt.Fprintf(&sb, "%swebsocket_connections_active %d\n\n", prefix, atomic.LoadInt64(&m.activeWSConnections))

		header(&sb, "extraction_queue_depth", "gauge", "Extraction tasks waiting for a worker")
		fmt.Fprintf(&sb, "%sextraction_queue_depth %d\n\n", prefix, atomic.LoadInt64(&m.queueDepth))

		header(&sb, "extraction_workers_busy", "gauge", "Workers currently running a job")
		fmt.Fprintf(&sb, "%sextraction_workers_busy %d\n\n", prefix, atomic.LoadInt64(&m.busyWorkers))

		header(&sb, "extraction_retries_total", "counter", "Failed attempts that were retried")
		fmt.Fprintf(&sb, "%sextraction_retries_total %d\n\n", prefix, atomic.LoadUint64(&m.jobRetries))

		header(&sb, "extraction_attempt_duration_seconds", "histogram", "Wall time of one extraction attempt")
		m.attemptDuration.write(&sb, prefix+"extraction_attempt_duration_seconds", "")
		sb.WriteString("\n")

		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.jobOutcomes) > 0 {
			header(&sb, "extraction_jobs_total", "counter", "Jobs that reached a terminal status")
			for _, status := range sortedKeys(m.jobOutcomes) {
				fmt.Fprintf(&sb, "%sextraction_jobs_total{status=\"%s\"} %d\n", prefix, status, atomic.LoadUint64(m.jobOutcomes[status]))
			}
			sb.WriteString("\n")
		}

		if len(m.requestCount) > 0 {
			header(&sb, "http_requests_total", "counter", "Total HTTP requests")
			for _, key := range sortedKeys(m.requestCount) {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					fmt.Fprintf(&sb, "%shttp_requests_total{endpoint=\"%s\",method=\"%s\"} %d\n", prefix, parts[0], parts[1], atomic.LoadUint64(m.requestCount[key]))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestDuration) > 0 {
			header(&sb, "http_request_duration_seconds", "histogram", "HTTP request latency")
			for _, key := range sortedKeys(m.requestDuration) {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					labels := fmt.Sprintf("endpoint=\"%s\",method=\"%s\"", parts[0], parts[1])
					m.requestDuration[key].write(&sb, prefix+"http_request_duration_seconds", labels)
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			header(&sb, "http_errors_total", "counter", "Total HTTP errors by status class")
			for _, key := range sortedKeys(m.requestErrors) {
				// endpoint:method:class
				parts := strings.Split(key, ":")
				if len(parts) >= 3 {
					fmt.Fprintf(&sb, "%shttp_errors_total{endpoint=\"%s\",method=\"%s\",status_class=\"%sxx\"} %d\n", prefix, parts[0], parts[1], parts[2], atomic.LoadUint64(m.requestErrors[key]))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.gauges) > 0 {
			header(&sb, "gauge", "gauge", "Custom gauge metrics")
			for _, name := range sortedKeys(m.gauges) {
				fmt.Fprintf(&sb, "%sgauge{name=\"%s\"} %f\n", prefix, name, m.gauges[name])
			}
			sb.WriteString("\n")
		}

		if len(m.counters) > 0 {
			header(&sb, "counter", "counter", "Custom counter metrics")
			for _, name := range sortedKeys(m.counters) {
				fmt.Fprintf(&sb, "%scounter{name=\"%s\"} %d\n", prefix, name, atomic.LoadUint64(m.counters[name]))
			}
		}

		w.Write([]byte(sb.String()))
	}
}

// MetricsMiddleware creates middleware that records request metrics
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.RecordRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so websocket upgrades can hijack it.
func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
