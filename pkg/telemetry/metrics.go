package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce           sync.Once
	metricsInitErr        error
	gateDecisionCounter   metric.Int64Counter
	menuRebuildCounter    metric.Int64Counter
	manifestReloadCounter metric.Int64Counter
	panelFetchHistogram   metric.Float64Histogram
)

// GateMetrics captures the fields needed to record one entitlement decision
// on a panel.
type GateMetrics struct {
	Panel    string
	Outcome  string
	Duration time.Duration
}

// RecordGateDecision emits the counters and histograms describing a panel
// gate evaluation.
func RecordGateDecision(ctx context.Context, metrics GateMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	// Principal identifiers never become attributes: unbounded cardinality
	// and potentially sensitive.
	attrs := []attribute.KeyValue{
		attribute.String("panel.name", metrics.Panel),
		attribute.String("gate.outcome", metrics.Outcome),
	}

	gateDecisionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		panelFetchHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

// RecordMenuRebuild counts one aggregation pass over the plugin menu.
func RecordMenuRebuild(ctx context.Context, rendered bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	menuRebuildCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("menu.rendered", rendered),
	))
}

// RecordManifestReload counts one plugin manifest reload.
func RecordManifestReload(ctx context.Context, generation int64) {
	if err := ensureMetrics(); err != nil {
		return
	}
	manifestReloadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("menu.generation", generation),
	))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("console.gateway")

		gateDecisionCounter, metricsInitErr = meter.Int64Counter(
			"console.gate.decisions_total",
			metric.WithDescription("Panel entitlement decisions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		menuRebuildCounter, metricsInitErr = meter.Int64Counter(
			"console.menu.rebuilds_total",
			metric.WithDescription("Menu aggregation passes partitioned by render outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		manifestReloadCounter, metricsInitErr = meter.Int64Counter(
			"console.manifest.reloads_total",
			metric.WithDescription("Plugin manifest reloads observed by the provider"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		panelFetchHistogram, metricsInitErr = meter.Float64Histogram(
			"console.panel.fetch_duration",
			metric.WithDescription("Panel data fetch latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
