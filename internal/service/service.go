// Package service provides the business logic for the tag listing API
package service

import (
	"context"
	"errors"

	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/tags"
)

var (
	// ErrRefreshFailed is returned when a refresh left the store empty
	ErrRefreshFailed = errors.New("refresh did not store any tags")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go TagService

// TagService defines the interface for tag operations
type TagService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// ListTags returns one sorted page of the cached collection, filling the cache first if needed.
	// Rejected parameters are reported as *validators.ValidationError.
	ListTags(ctx context.Context, opts ...Option) (*TagPage, error)

	// RefreshTags clears the cache and refetches every tag
	RefreshTags(ctx context.Context) (*RefreshResult, error)

	// SyncStatus returns the state of the most recent fetch cycle
	SyncStatus(ctx context.Context) *status.SyncStatus
}

// TagPage is one page of the sorted collection
type TagPage struct {
	Tags []tags.Tag
	// Total is the size of the whole collection
	Total    int
	Page     int
	PageSize int
}

// RefreshResult describes a successful refresh
type RefreshResult struct {
	Count   int
	CycleID string
}
