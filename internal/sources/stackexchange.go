package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/httpclient"
	"github.com/sotags/sotags-api/internal/otel"
)

// stackExchangeEnvelope is the common wrapper of every Stack Exchange API response
type stackExchangeEnvelope struct {
	Items          []Item  `json:"items"`
	HasMore        *bool   `json:"has_more"`
	QuotaMax       *int64  `json:"quota_max"`
	QuotaRemaining *int64  `json:"quota_remaining"`
	Backoff        int     `json:"backoff"`
	ErrorID        int     `json:"error_id"`
	ErrorName      string  `json:"error_name"`
	ErrorMessage   *string `json:"error_message"`
}

// StackExchangeSource fetches tags from the Stack Exchange API
type StackExchangeSource struct {
	client   httpclient.Client
	baseURL  string
	site     string
	apiKey   string
	pageSize int
	tracer   trace.Tracer
}

// Option configures a StackExchangeSource
type Option func(*StackExchangeSource)

// WithBaseURL overrides the API base URL. It must end with a slash.
func WithBaseURL(baseURL string) Option {
	return func(s *StackExchangeSource) {
		s.baseURL = baseURL
	}
}

// WithSite selects the Stack Exchange site
func WithSite(site string) Option {
	return func(s *StackExchangeSource) {
		s.site = site
	}
}

// WithAPIKey sets the application key, which raises the daily quota
func WithAPIKey(key string) Option {
	return func(s *StackExchangeSource) {
		s.apiKey = key
	}
}

// WithPageSize sets the number of items requested per page
func WithPageSize(size int) Option {
	return func(s *StackExchangeSource) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithTracer sets the tracer used for upstream spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *StackExchangeSource) {
		s.tracer = tracer
	}
}

// NewStackExchangeSource creates a source with the default Stack Overflow settings
func NewStackExchangeSource(client httpclient.Client, opts ...Option) *StackExchangeSource {
	s := &StackExchangeSource{
		client:   client,
		baseURL:  config.DefaultUpstreamBaseURL,
		site:     config.DefaultUpstreamSite,
		pageSize: config.DefaultUpstreamPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize implements TagSource
func (s *StackExchangeSource) PageSize() int {
	return s.pageSize
}

// PageURL builds the request URL for a page
func (s *StackExchangeSource) PageURL(page int) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pagesize", strconv.Itoa(s.pageSize))
	params.Set("order", "desc")
	params.Set("sort", "popular")
	params.Set("site", s.site)
	if s.apiKey != "" {
		params.Set("key", s.apiKey)
	}
	return s.baseURL + "tags?" + params.Encode()
}

// FetchPage implements TagSource
func (s *StackExchangeSource) FetchPage(ctx context.Context, page int) (*Page, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sources.FetchPage",
		trace.WithAttributes(otel.AttrUpstreamPage.Int(page)),
	)
	defer span.End()

	data, err := s.client.Get(ctx, s.PageURL(page))
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to fetch tags page %d: %w", ErrUpstreamFailure, page, err)
	}

	var envelope stackExchangeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to decode tags page %d: %w", ErrUpstreamFailure, page, err)
	}

	if envelope.ErrorID != 0 {
		msg := envelope.ErrorName
		if envelope.ErrorMessage != nil {
			msg = *envelope.ErrorMessage
		}
		err := fmt.Errorf("%w: upstream error %d on page %d: %s", ErrUpstreamFailure, envelope.ErrorID, page, msg)
		otel.RecordError(span, err)
		return nil, err
	}

	result := &Page{
		Items:          envelope.Items,
		HasMore:        envelope.HasMore,
		QuotaRemaining: -1,
		Backoff:        envelope.Backoff,
	}
	if result.Items == nil {
		result.Items = []Item{}
	}
	if envelope.QuotaRemaining != nil {
		result.QuotaRemaining = *envelope.QuotaRemaining
	}

	if result.Backoff > 0 {
		slog.WarnContext(ctx, "Upstream requested backoff",
			"page", page,
			"backoff_seconds", result.Backoff)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(result.Items)))
	return result, nil
}
