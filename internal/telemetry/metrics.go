package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// TagMetricsMeterName is the name used for the tag collection meter
	TagMetricsMeterName = "github.com/sotags/sotags-api/tags"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/sotags/sotags-api/sync"
)

// TagMetrics holds the OpenTelemetry instruments describing the cached collection
type TagMetrics struct {
	tagsTotal metric.Int64Gauge
}

// NewTagMetrics creates a new TagMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewTagMetrics(provider metric.MeterProvider) (*TagMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TagMetricsMeterName)

	tagsTotal, err := meter.Int64Gauge(
		"sotags_tags_total",
		metric.WithDescription("Number of tags in the local cache"),
		metric.WithUnit("{tag}"),
	)
	if err != nil {
		return nil, err
	}

	return &TagMetrics{
		tagsTotal: tagsTotal,
	}, nil
}

// RecordTagsTotal records the current size of the cached collection
func (m *TagMetrics) RecordTagsTotal(ctx context.Context, count int64) {
	if m == nil || m.tagsTotal == nil {
		return
	}

	m.tagsTotal.Record(ctx, count)
}

// SyncMetrics holds the OpenTelemetry instruments for fetch cycles
type SyncMetrics struct {
	syncDuration   metric.Float64Histogram
	pagesFetched   metric.Int64Counter
	quotaRemaining metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"sotags_sync_duration_seconds",
		metric.WithDescription("Duration of fetch cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	pagesFetched, err := meter.Int64Counter(
		"sotags_upstream_pages_total",
		metric.WithDescription("Number of upstream tag pages fetched"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, err
	}

	quotaRemaining, err := meter.Int64Gauge(
		"sotags_upstream_quota_remaining",
		metric.WithDescription("Requests left in the upstream daily quota"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:   syncDuration,
		pagesFetched:   pagesFetched,
		quotaRemaining: quotaRemaining,
	}, nil
}

// RecordSyncDuration records the duration of a fetch cycle
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, trigger string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPageFetched counts one upstream page and records the quota it reported
func (m *SyncMetrics) RecordPageFetched(ctx context.Context, quotaRemaining int64) {
	if m == nil {
		return
	}

	if m.pagesFetched != nil {
		m.pagesFetched.Add(ctx, 1)
	}
	if m.quotaRemaining != nil && quotaRemaining >= 0 {
		m.quotaRemaining.Record(ctx, quotaRemaining)
	}
}
