// Package observability exposes run metrics through an OpenTelemetry meter
// backed by a Prometheus exporter.
package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"sidas/internal/orchestrator"
)

const (
	attrAsset  = "asset"
	attrStatus = "status"
	attrReason = "reason"
	attrResult = "result"
)

// Metrics records materialization latency, throughput, failures, and the
// number of assets in flight. It implements orchestrator.Recorder.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	AssetDuration metric.Float64Histogram
	AssetOutcomes metric.Int64Counter
	AssetsActive  metric.Int64UpDownCounter
	ChangedTotal  metric.Int64Counter
	RunDuration   metric.Float64Histogram
	RunsTotal     metric.Int64Counter
}

var _ orchestrator.Recorder = (*Metrics)(nil)

// NewMetrics registers all instruments on a fresh Prometheus registry and
// returns the handler serving it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("sidas")
	m := &Metrics{provider: provider}

	m.AssetDuration, err = meter.Float64Histogram(
		"sidas_asset_duration_seconds",
		metric.WithDescription("Time spent evaluating and materializing one asset"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AssetOutcomes, err = meter.Int64Counter(
		"sidas_asset_outcomes_total",
		metric.WithDescription("Asset outcomes by status and reason"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AssetsActive, err = meter.Int64UpDownCounter(
		"sidas_assets_active",
		metric.WithDescription("Assets currently being evaluated or materialized"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ChangedTotal, err = meter.Int64Counter(
		"sidas_asset_changes_total",
		metric.WithDescription("Materializations that produced a new fingerprint"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"sidas_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of a run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 300, 900, 1800, 3600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"sidas_runs_total",
		metric.WithDescription("Finished runs by result"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func (m *Metrics) AssetStarted(ctx context.Context, name string) {
	m.AssetsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAsset, name)))
}

func (m *Metrics) AssetFinished(ctx context.Context, o orchestrator.Outcome) {
	asset := attribute.String(attrAsset, o.Asset)
	if dispatched(o) {
		m.AssetsActive.Add(ctx, -1, metric.WithAttributes(asset))
		m.AssetDuration.Record(ctx, o.Duration.Seconds(),
			metric.WithAttributes(asset, attribute.String(attrStatus, string(o.Status))))
	}
	m.AssetOutcomes.Add(ctx, 1, metric.WithAttributes(
		asset,
		attribute.String(attrStatus, string(o.Status)),
		attribute.String(attrReason, o.Reason),
	))
	if o.Changed {
		m.ChangedTotal.Add(ctx, 1, metric.WithAttributes(asset))
	}
}

// dispatched reports whether o went through a worker. Assets skipped because
// an upstream failed or the run was cancelled never did.
func dispatched(o orchestrator.Outcome) bool {
	if o.Status != orchestrator.StatusSkipped {
		return true
	}
	return o.Reason != orchestrator.ReasonUpstreamFailed && o.Reason != orchestrator.ReasonCancelled
}

func (m *Metrics) RunFinished(ctx context.Context, r *orchestrator.Report) {
	result := "succeeded"
	switch {
	case r.Cancelled:
		result = "cancelled"
	case r.HasFailures():
		result = "failed"
	}
	m.RunDuration.Record(ctx, r.Duration().Seconds())
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
