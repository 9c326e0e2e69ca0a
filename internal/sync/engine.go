package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/otel"
	"github.com/sotags/sotags-api/internal/sources"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/tags"
	"github.com/sotags/sotags-api/internal/telemetry"
)

// ErrUpstream is wrapped by errors caused by the upstream API during a cycle
var ErrUpstream = errors.New("failed to fetch tags from upstream")

const (
	flightFetch   = "fetch"
	flightRefresh = "refresh"
	flightRebuild = "rebuild"
)

// Result is the outcome of one fetch cycle
type Result struct {
	// Tags is the stored collection after commit, or the unsaved working set
	// when persisting failed
	Tags []tags.Tag

	// Success is true when the store holds at least one tag after commit
	Success bool

	PagesFetched int
	Added        int
	TotalCount   int64
	CycleID      string
	Duration     time.Duration
}

// Engine keeps the stored tag collection filled from the upstream
//
//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks -source=engine.go Engine
type Engine interface {
	// NeedsRefresh reports whether the collection is too small to serve
	NeedsRefresh(collection []tags.Tag) bool

	// FetchAndMerge runs one cycle seeded with existing
	FetchAndMerge(ctx context.Context, existing []tags.Tag) (*Result, error)

	// Refresh deletes every stored tag and runs a cycle from an empty seed
	Refresh(ctx context.Context) (*Result, error)

	// Rebuild fetches a fresh collection and swaps it in only when the fetch
	// succeeded, leaving the stored tags untouched on upstream failure
	Rebuild(ctx context.Context) (*Result, error)

	// EnsureFresh returns the stored collection, running a cycle first when it is inadequate
	EnsureFresh(ctx context.Context) ([]tags.Tag, error)

	// Status returns the state of the most recent cycle
	Status() *status.SyncStatus
}

type triggerKey struct{}

// WithTrigger labels cycles started with ctx
func WithTrigger(ctx context.Context, trigger status.Trigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom returns the trigger set by WithTrigger, if any
func TriggerFrom(ctx context.Context) (status.Trigger, bool) {
	t, ok := ctx.Value(triggerKey{}).(status.Trigger)
	return t, ok && t != ""
}

func triggerOr(ctx context.Context, fallback status.Trigger) status.Trigger {
	if t, ok := TriggerFrom(ctx); ok {
		return t
	}
	return fallback
}

// Option configures the engine
type Option func(*engine)

// WithMaxTags sets the collection size at which fetching stops
func WithMaxTags(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.maxTags = n
		}
	}
}

// WithMaxPages bounds the number of upstream pages per cycle
func WithMaxPages(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithCycleTimeout bounds a whole cycle
func WithCycleTimeout(d time.Duration) Option {
	return func(e *engine) {
		if d > 0 {
			e.cycleTimeout = d
		}
	}
}

// WithTracker records cycles in the given status tracker
func WithTracker(tracker *status.Tracker) Option {
	return func(e *engine) {
		e.tracker = tracker
	}
}

// WithSyncMetrics sets the sync metrics
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(e *engine) {
		e.syncMetrics = metrics
	}
}

// WithTagMetrics sets the collection metrics
func WithTagMetrics(metrics *telemetry.TagMetrics) Option {
	return func(e *engine) {
		e.tagMetrics = metrics
	}
}

// WithTracer sets the OpenTelemetry tracer.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(e *engine) {
		e.tracer = tracer
	}
}

type engine struct {
	store  store.Store
	source sources.TagSource

	maxTags      int
	maxPages     int
	cycleTimeout time.Duration

	tracker     *status.Tracker
	syncMetrics *telemetry.SyncMetrics
	tagMetrics  *telemetry.TagMetrics
	tracer      trace.Tracer

	// cycleMu serializes cycles; flights deduplicates concurrent triggers
	cycleMu sync.Mutex
	flights singleflight.Group
}

var _ Engine = (*engine)(nil)

// New creates an engine persisting to st and fetching from src
func New(st store.Store, src sources.TagSource, opts ...Option) Engine {
	e := &engine{
		store:        st,
		source:       src,
		maxTags:      config.DefaultMaxTags,
		maxPages:     config.DefaultMaxPages,
		cycleTimeout: config.DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = status.NewTracker(context.Background(), nil)
	}
	return e
}

// NeedsRefresh implements Engine
func (e *engine) NeedsRefresh(collection []tags.Tag) bool {
	return len(collection) == 0 || len(collection) < e.maxTags
}

// Status implements Engine
func (e *engine) Status() *status.SyncStatus {
	return e.tracker.Status()
}

// FetchAndMerge implements Engine
func (e *engine) FetchAndMerge(ctx context.Context, existing []tags.Tag) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cycleTimeout)
	defer cancel()

	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	return e.runCycle(ctx, triggerOr(ctx, status.TriggerListing), func(ctx context.Context, r *Result) error {
		return e.merge(ctx, existing, r)
	})
}

// Refresh implements Engine
func (e *engine) Refresh(ctx context.Context) (*Result, error) {
	v, err, shared := e.flights.Do(flightRefresh, func() (any, error) {
		cycleCtx, cancel := e.detached(ctx)
		defer cancel()

		e.cycleMu.Lock()
		defer e.cycleMu.Unlock()

		return e.runCycle(cycleCtx, triggerOr(ctx, status.TriggerRefresh), func(ctx context.Context, r *Result) error {
			if err := e.store.DeleteAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Failed to clear stored tags", "cycle_id", r.CycleID, "error", err)
				return nil
			}
			return e.merge(ctx, nil, r)
		})
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "Joined in-flight refresh")
	}
	return copyResult(v.(*Result)), nil
}

// Rebuild implements Engine
func (e *engine) Rebuild(ctx context.Context) (*Result, error) {
	v, err, _ := e.flights.Do(flightRebuild, func() (any, error) {
		cycleCtx, cancel := e.detached(ctx)
		defer cancel()

		e.cycleMu.Lock()
		defer e.cycleMu.Unlock()

		return e.runCycle(cycleCtx, triggerOr(ctx, status.TriggerScheduled), func(ctx context.Context, r *Result) error {
			if err := e.collect(ctx, nil, r); err != nil {
				return err
			}
			if len(r.Tags) == 0 {
				slog.WarnContext(ctx, "Upstream returned no tags, keeping stored collection", "cycle_id", r.CycleID)
				return nil
			}
			if err := e.store.DeleteAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Failed to clear stored tags", "cycle_id", r.CycleID, "error", err)
				return nil
			}
			return e.persist(ctx, r)
		})
	})
	if err != nil {
		return nil, err
	}
	return copyResult(v.(*Result)), nil
}

// EnsureFresh implements Engine
func (e *engine) EnsureFresh(ctx context.Context) ([]tags.Tag, error) {
	collection, err := e.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	if !e.NeedsRefresh(collection) {
		return collection, nil
	}

	v, err, _ := e.flights.Do(flightFetch, func() (any, error) {
		cycleCtx, cancel := e.detached(ctx)
		defer cancel()

		e.cycleMu.Lock()
		defer e.cycleMu.Unlock()

		// Another cycle may have filled the store while we waited
		current, err := e.store.ReadAll(cycleCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to read tags: %w", err)
		}
		if !e.NeedsRefresh(current) {
			return current, nil
		}

		result, err := e.runCycle(cycleCtx, triggerOr(ctx, status.TriggerListing), func(ctx context.Context, r *Result) error {
			return e.merge(ctx, current, r)
		})
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result.Tags, nil
		}

		// Serve whatever the store still holds
		current, err = e.store.ReadAll(cycleCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to read tags: %w", err)
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	return tags.Clone(v.([]tags.Tag)), nil
}

// detached returns a context that survives the caller's cancellation but is bounded by the cycle timeout
func (e *engine) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cycleTimeout)
}

// runCycle wraps body with status tracking, tracing, metrics and logging.
// Must be called with cycleMu held.
func (e *engine) runCycle(
	ctx context.Context,
	trigger status.Trigger,
	body func(context.Context, *Result) error,
) (*Result, error) {
	result := &Result{CycleID: uuid.NewString()}

	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.Cycle",
		trace.WithAttributes(
			otel.AttrSyncTrigger.String(string(trigger)),
			otel.AttrSyncCycleID.String(result.CycleID),
		),
	)
	defer span.End()

	logger := slog.With("cycle_id", result.CycleID, "trigger", trigger)
	logger.InfoContext(ctx, "Starting tag sync")
	e.tracker.Start(ctx, trigger, result.CycleID)

	start := time.Now()
	err := body(ctx, result)
	result.Duration = time.Since(start)

	e.syncMetrics.RecordSyncDuration(ctx, string(trigger), result.Duration, err == nil && result.Success)
	span.SetAttributes(
		attribute.Int("sync.pages_fetched", result.PagesFetched),
		attribute.Int("sync.added", result.Added),
		attribute.Bool("sync.success", result.Success),
	)

	if err != nil {
		otel.RecordError(span, err)
		e.tracker.Fail(ctx, err.Error())
		logger.ErrorContext(ctx, "Tag sync failed",
			"pages_fetched", result.PagesFetched,
			"duration", result.Duration,
			"error", err)
		return nil, err
	}

	if !result.Success {
		e.tracker.Fail(ctx, "Tags could not be persisted")
		logger.ErrorContext(ctx, "Tag sync did not persist any tags",
			"pages_fetched", result.PagesFetched,
			"duration", result.Duration)
		return result, nil
	}

	e.tracker.Complete(ctx, len(result.Tags))
	e.tagMetrics.RecordTagsTotal(ctx, int64(len(result.Tags)))
	logger.InfoContext(ctx, "Tag sync completed",
		"tag_count", len(result.Tags),
		"added", result.Added,
		"pages_fetched", result.PagesFetched,
		"total_count", result.TotalCount,
		"duration", result.Duration)
	return result, nil
}

// merge fills the working set from the upstream, computes shares and persists it
func (e *engine) merge(ctx context.Context, existing []tags.Tag, r *Result) error {
	if err := e.collect(ctx, existing, r); err != nil {
		return err
	}
	return e.persist(ctx, r)
}

// collect fills r.Tags from existing plus upstream pages and computes shares.
// It never touches the store.
func (e *engine) collect(ctx context.Context, existing []tags.Tag, r *Result) error {
	working := make([]tags.Tag, 0, max(len(existing), e.maxTags))
	seen := make(map[string]struct{}, cap(working))
	for _, t := range existing {
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		working = append(working, t)
	}

	pageSize := e.source.PageSize()
	for page := 1; len(working) < e.maxTags; page++ {
		if page > e.maxPages {
			slog.WarnContext(ctx, "Stopping at page limit", "cycle_id", r.CycleID, "max_pages", e.maxPages)
			break
		}

		p, err := e.source.FetchPage(ctx, page)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		r.PagesFetched++
		e.syncMetrics.RecordPageFetched(ctx, p.QuotaRemaining)

		for _, item := range p.Items {
			if _, dup := seen[item.Name]; dup {
				continue
			}
			seen[item.Name] = struct{}{}
			working = append(working, tags.Tag{Name: item.Name, Count: item.Count})
			r.Added++
		}

		slog.DebugContext(ctx, "Fetched tag page",
			"cycle_id", r.CycleID,
			"page", page,
			"items", len(p.Items),
			"collected", len(working),
			"quota_remaining", p.QuotaRemaining)

		if len(p.Items) < pageSize || p.Exhausted() {
			break
		}
	}

	r.TotalCount = tags.ApplyShares(working)
	r.Tags = working
	return nil
}

// persist saves r.Tags. A failed save is reported through r.Success only.
func (e *engine) persist(ctx context.Context, r *Result) error {
	if len(r.Tags) == 0 {
		return nil
	}

	saved, err := e.store.SaveAll(ctx, r.Tags)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist tags", "cycle_id", r.CycleID, "error", err)
		return nil
	}

	r.Tags = saved
	r.Success = len(saved) > 0
	return nil
}

func copyResult(r *Result) *Result {
	c := *r
	c.Tags = tags.Clone(r.Tags)
	return &c
}
