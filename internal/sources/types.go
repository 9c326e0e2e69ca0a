package sources

import (
	"context"
	"errors"
)

// ErrUpstreamFailure is wrapped by every error caused by the upstream answering
// with something other than a usable page
var ErrUpstreamFailure = errors.New("upstream request failed")

//go:generate mockgen -destination=mocks/mock_tag_source.go -package=mocks -source=types.go TagSource

// TagSource fetches pages of popular tags from an upstream API
type TagSource interface {
	// FetchPage retrieves the given 1-based page
	FetchPage(ctx context.Context, page int) (*Page, error)

	// PageSize is the number of items a full page carries
	PageSize() int
}

// Item is one tag entry as returned by the upstream
type Item struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Page is one decoded upstream response
type Page struct {
	Items []Item

	// HasMore is nil when the upstream did not say
	HasMore *bool

	// QuotaRemaining is -1 when the upstream did not report it
	QuotaRemaining int64

	// Backoff is the number of seconds the upstream asked clients to wait, 0 if none
	Backoff int
}

// Exhausted reports whether the upstream signalled there are no more pages
func (p *Page) Exhausted() bool {
	return p.HasMore != nil && !*p.HasMore
}
