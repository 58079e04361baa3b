package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's instruments, covering the golden signals:
// - Latency: how long requests and submissions take
// - Traffic: request and submission throughput
// - Errors: failed requests, failed submissions by stage, failed deliveries
// - Saturation: submissions in flight
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Submission metrics
	SubmissionDuration     metric.Float64Histogram
	SubmissionsTotal       metric.Int64Counter
	SubmissionStageFailure metric.Int64Counter
	SubmissionsActive      metric.Int64UpDownCounter

	// Notification metrics
	NotificationDuration  metric.Float64Histogram
	NotificationDelivered metric.Int64Counter
	NotificationFailed    metric.Int64Counter
	NotificationDropped   metric.Int64Counter
}

// NewMetrics creates all metrics and returns them with the handler serving
// them. Each call uses its own registry, which also carries the Go runtime
// and process collectors.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("candidate-uploader")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionDuration, err = meter.Float64Histogram(
		"submission_duration_seconds",
		metric.WithDescription("End-to-end submission duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"submissions_total",
		metric.WithDescription("Total number of finished submissions"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionStageFailure, err = meter.Int64Counter(
		"submission_stage_failures_total",
		metric.WithDescription("Total number of failed submissions by the stage they failed in"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsActive, err = meter.Int64UpDownCounter(
		"submissions_active",
		metric.WithDescription("Number of submissions in flight (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationDuration, err = meter.Float64Histogram(
		"notification_duration_seconds",
		metric.WithDescription("Webhook delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationDelivered, err = meter.Int64Counter(
		"notifications_delivered_total",
		metric.WithDescription("Total events delivered to the webhook"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationFailed, err = meter.Int64Counter(
		"notifications_failed_total",
		metric.WithDescription("Total events whose delivery attempt failed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationDropped, err = meter.Int64Counter(
		"notifications_dropped_total",
		metric.WithDescription("Total events dropped because the queue was full"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSubmissionStarted records a submission entering the pipeline.
func (m *Metrics) RecordSubmissionStarted(ctx context.Context) {
	m.SubmissionsActive.Add(ctx, 1)
}

// RecordSubmissionFinished records a submission reaching a terminal state.
// failedStage is empty on success.
func (m *Metrics) RecordSubmissionFinished(ctx context.Context, success bool, failedStage string, durationSeconds float64) {
	attrs := metric.WithAttributes(successAttr(success))
	m.SubmissionsActive.Add(ctx, -1)
	m.SubmissionsTotal.Add(ctx, 1, attrs)
	m.SubmissionDuration.Record(ctx, durationSeconds, attrs)

	if !success {
		m.SubmissionStageFailure.Add(ctx, 1, metric.WithAttributes(stageAttr(failedStage)))
	}
}

// RecordNotificationDelivered records a delivered event with its latency.
func (m *Metrics) RecordNotificationDelivered(ctx context.Context, durationSeconds float64) {
	m.NotificationDelivered.Add(ctx, 1)
	m.NotificationDuration.Record(ctx, durationSeconds)
}

// RecordNotificationFailed records a failed delivery attempt.
func (m *Metrics) RecordNotificationFailed(ctx context.Context) {
	m.NotificationFailed.Add(ctx, 1)
}

// RecordNotificationDropped records an event dropped on a full queue.
func (m *Metrics) RecordNotificationDropped(ctx context.Context) {
	m.NotificationDropped.Add(ctx, 1)
}
