package observability

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsReadHeaderTimeout bounds header reads on the scrape endpoint.
const metricsReadHeaderTimeout = 10 * time.Second

// Metrics holds the run counters every pipeline stage increments. A fresh
// registry per run avoids collector conflicts in tests.
type Metrics struct {
	DocumentsRead       prometheus.Counter
	DocumentsKept       prometheus.Counter
	DuplicatesDiscarded prometheus.Counter
	BatchesProcessed    prometheus.Counter
	ShardRotations      prometheus.Counter
	BytesWritten        prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers the pipeline counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := counterFactory{registry}

	return &Metrics{
		DocumentsRead:       factory.counter("textfang_documents_read_total", "Documents read across all input files."),
		DocumentsKept:       factory.counter("textfang_documents_kept_total", "Documents surviving the current pass."),
		DuplicatesDiscarded: factory.counter("textfang_duplicates_discarded_total", "Documents discarded as duplicates."),
		BatchesProcessed:    factory.counter("textfang_batches_processed_total", "Line batches consumed by workers."),
		ShardRotations:      factory.counter("textfang_shard_rotations_total", "Output shard rotations."),
		BytesWritten:        factory.counter("textfang_bytes_written_total", "Uncompressed bytes written to output."),
		registry:            registry,
	}
}

// counterFactory binds counters to one registry.
type counterFactory struct {
	registry *prometheus.Registry
}

func (f counterFactory) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.registry.MustRegister(c)

	return c
}

// Serve exposes /metrics on addr from a background goroutine. The server
// lives for the remainder of the process; a batch run has no graceful
// shutdown to coordinate.
func (m *Metrics) Serve(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}
