package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's operational metrics
type Metrics struct {
	refreshes       metric.Int64Counter
	refreshDuration metric.Float64Histogram
	liveInstances   metric.Int64Gauge
	revision        metric.Int64Gauge
}

// NewMetrics creates daemon metrics following OTEL naming conventions
func NewMetrics() (*Metrics, error) {
	return newMetricsFor(otel.Meter("opsfab.daemon"))
}

func newMetricsFor(meter metric.Meter) (*Metrics, error) {
	refreshes, err := meter.Int64Counter(
		"opsfab.daemon.refreshes",
		metric.WithDescription("Number of inventory refresh runs"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	refreshDuration, err := meter.Float64Histogram(
		"opsfab.daemon.refresh.duration",
		metric.WithDescription("Duration of inventory refreshes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	liveInstances, err := meter.Int64Gauge(
		"opsfab.daemon.instances.live",
		metric.WithDescription("Live instances seen by the last refresh"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, err
	}

	revision, err := meter.Int64Gauge(
		"opsfab.daemon.inventory.revision",
		metric.WithDescription("Current inventory revision"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		refreshes:       refreshes,
		refreshDuration: refreshDuration,
		liveInstances:   liveInstances,
		revision:        revision,
	}, nil
}

// RecordRefresh records one refresh run with its status
func (m *Metrics) RecordRefresh(ctx context.Context, duration time.Duration, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.refreshes.Add(ctx, 1, attrs)
	m.refreshDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordInventory records the inventory gauges after a refresh
func (m *Metrics) RecordInventory(ctx context.Context, live int64, revision int64) {
	m.liveInstances.Record(ctx, live)
	m.revision.Record(ctx, revision)
}
