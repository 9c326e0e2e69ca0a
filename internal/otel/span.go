// Package otel provides OpenTelemetry instrumentation utilities for the tag cache server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across the server
const (
	AttrStorageType  = attribute.Key("storage.type")
	AttrSyncTrigger  = attribute.Key("sync.trigger")
	AttrSyncCycleID  = attribute.Key("sync.cycle_id")
	AttrUpstreamPage = attribute.Key("upstream.page")
	AttrUpstreamSite = attribute.Key("upstream.site")
	AttrSortBy       = attribute.Key("query.sort_by")
	AttrDirection    = attribute.Key("query.direction")
	AttrPage         = attribute.Key("pagination.page")
	AttrPageSize     = attribute.Key("pagination.page_size")
	AttrResultCount  = attribute.Key("result.count")
)

// StartSpan starts a span on tracer. A nil tracer returns ctx unchanged and
// whatever span it already carries.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The error text goes to an exception event
// only; the status description stays generic so DSNs and queries do not leak
// into status fields. Nil span or nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
