package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/otel"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/sync"
	"github.com/sotags/sotags-api/internal/tags"
	"github.com/sotags/sotags-api/internal/validators"
)

// ServiceTracerName is the name used for the tag service tracer
const ServiceTracerName = "github.com/sotags/sotags-api/service"

// tagService is the default TagService backed by a sync engine and a store
type tagService struct {
	engine    sync.Engine
	store     store.Store
	validator *validators.RequestValidator
	tracer    trace.Tracer
}

var _ TagService = (*tagService)(nil)

// ServiceOption configures the tag service
type ServiceOption func(*tagService)

// WithTracer sets the OpenTelemetry tracer for the service.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *tagService) {
		s.tracer = tracer
	}
}

// New creates a TagService
func New(engine sync.Engine, st store.Store, opts ...ServiceOption) TagService {
	s := &tagService{
		engine:    engine,
		store:     st,
		validator: validators.NewRequestValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckReadiness implements TagService
func (s *tagService) CheckReadiness(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("tag store is not reachable: %w", err)
	}
	return nil
}

// ListTags implements TagService
func (s *tagService) ListTags(ctx context.Context, opts ...Option) (*TagPage, error) {
	options := newListTagsOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "tagService.ListTags",
		trace.WithAttributes(
			otel.AttrSortBy.String(options.SortBy),
			otel.AttrPage.Int(options.Page),
			otel.AttrPageSize.Int(options.PageSize),
		),
	)
	defer span.End()

	collection, err := s.engine.EnsureFresh(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	if err := s.validator.Validate(options.Query, collection); err != nil {
		slog.DebugContext(ctx, "Rejected listing request",
			"sort_by", options.SortBy,
			"direction", options.Direction,
			"page", options.Page,
			"page_size", options.PageSize,
			"collection_size", len(collection),
			"reason", err)
		return nil, err
	}

	sorted := tags.Sort(collection, options.SortBy, options.Ascending())
	page := tags.Page(sorted, options.Page, options.PageSize)

	span.SetAttributes(otel.AttrResultCount.Int(len(page)))
	return &TagPage{
		Tags:     page,
		Total:    len(collection),
		Page:     options.Page,
		PageSize: options.PageSize,
	}, nil
}

// RefreshTags implements TagService
func (s *tagService) RefreshTags(ctx context.Context) (*RefreshResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "tagService.RefreshTags")
	defer span.End()

	result, err := s.engine.Refresh(sync.WithTrigger(ctx, status.TriggerRefresh))
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if !result.Success {
		otel.RecordError(span, ErrRefreshFailed)
		return nil, ErrRefreshFailed
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(result.Tags)))
	return &RefreshResult{
		Count:   len(result.Tags),
		CycleID: result.CycleID,
	}, nil
}

// SyncStatus implements TagService
func (s *tagService) SyncStatus(_ context.Context) *status.SyncStatus {
	return s.engine.Status()
}
