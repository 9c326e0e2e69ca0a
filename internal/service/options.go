package service

import (
	"fmt"

	"github.com/sotags/sotags-api/internal/tags"
)

// Option is a function that sets an option for service operations
type Option func(T any) error

type sortByOption interface {
	setSortBy(sortBy string) error
}

type directionOption interface {
	setDirection(direction string) error
}

type pageOption interface {
	setPage(page int) error
}

type pageSizeOption interface {
	setPageSize(pageSize int) error
}

// ListTagsOptions is the options for the ListTags operation.
// Values are passed to the request validator unchecked.
type ListTagsOptions struct {
	tags.Query
}

func newListTagsOptions() *ListTagsOptions {
	return &ListTagsOptions{Query: tags.DefaultQuery()}
}

//nolint:unparam
func (o *ListTagsOptions) setSortBy(sortBy string) error {
	o.SortBy = sortBy
	return nil
}

//nolint:unparam
func (o *ListTagsOptions) setDirection(direction string) error {
	o.Direction = direction
	return nil
}

//nolint:unparam
func (o *ListTagsOptions) setPage(page int) error {
	o.Page = page
	return nil
}

//nolint:unparam
func (o *ListTagsOptions) setPageSize(pageSize int) error {
	o.PageSize = pageSize
	return nil
}

// WithSortBy sets the sort field for the ListTags operation
func WithSortBy(sortBy string) Option {
	return func(o any) error {
		switch o := o.(type) {
		case sortByOption:
			return o.setSortBy(sortBy)
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
	}
}

// WithDirection sets the sort direction for the ListTags operation
func WithDirection(direction string) Option {
	return func(o any) error {
		switch o := o.(type) {
		case directionOption:
			return o.setDirection(direction)
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
	}
}

// WithPage sets the 1-based page for the ListTags operation
func WithPage(page int) Option {
	return func(o any) error {
		switch o := o.(type) {
		case pageOption:
			return o.setPage(page)
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
	}
}

// WithPageSize sets the page size for the ListTags operation
func WithPageSize(pageSize int) Option {
	return func(o any) error {
		switch o := o.(type) {
		case pageSizeOption:
			return o.setPageSize(pageSize)
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
	}
}
