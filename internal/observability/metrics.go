package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsServer serves Prometheus metrics on a separate port.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics HTTP server serving the Prometheus handler
// at the given path on the given port.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()

	if provider != nil && provider.promExporter != nil {
		mux.Handle(path, promhttp.Handler())
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// GateMetrics records per-verdict counters for the gating pipeline.
type GateMetrics struct {
	verdicts   metric.Int64Counter
	confidence metric.Int64Histogram
}

// NewGateMetrics registers the gate's instruments on the global meter.
func NewGateMetrics() (*GateMetrics, error) {
	meter := otel.Meter("botgate/gate")

	verdicts, err := meter.Int64Counter(
		"gate.verdicts",
		metric.WithDescription("Number of gate verdicts by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	confidence, err := meter.Int64Histogram(
		"gate.classification.confidence",
		metric.WithDescription("Bot-classification confidence score distribution"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{verdicts: verdicts, confidence: confidence}, nil
}

// RecordVerdict counts one decided request.
func (m *GateMetrics) RecordVerdict(ctx context.Context, outcome string, confidence int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.verdicts.Add(ctx, 1, attrs)
	m.confidence.Record(ctx, int64(confidence), attrs)
}
