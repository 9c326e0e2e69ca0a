// Package tags holds the tag domain model shared by the sync engine, the
// storage backends and the HTTP API.
package tags

import (
	"math"
	"strings"
)

// Sort fields accepted by the listing endpoint.
const (
	SortByID         = "id"
	SortByName       = "name"
	SortByPercentage = "percentage"
	SortByCount      = "count"
)

// Sort directions accepted by the listing endpoint.
const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

// Listing defaults.
const (
	DefaultSortBy    = SortByName
	DefaultDirection = DirectionDesc
	DefaultPage      = 1
	DefaultPageSize  = 100
)

// Tag is a StackOverflow tag with its usage count and its share of the
// total count of the cached collection.
type Tag struct {
	// ID is assigned by the store on first insert and never changes
	ID int64 `json:"id" yaml:"id" example:"1"`
	// Name is the tag label reported upstream
	Name string `json:"name" yaml:"name" example:"javascript"`
	// Count is the upstream usage count at fetch time
	Count int64 `json:"count" yaml:"count" example:"2528909"`
	// SharePercent is Count as a percentage of the sum of all counts
	SharePercent float64 `json:"sharePercent" yaml:"sharePercent" example:"8.42"`
}

// Query describes a listing request.
type Query struct {
	SortBy    string
	Direction string
	Page      int
	PageSize  int
}

// DefaultQuery returns a Query populated with the listing defaults.
func DefaultQuery() Query {
	return Query{
		SortBy:    DefaultSortBy,
		Direction: DefaultDirection,
		Page:      DefaultPage,
		PageSize:  DefaultPageSize,
	}
}

// Ascending reports whether the query asks for ascending order.
// Anything other than "asc" sorts descending.
func (q Query) Ascending() bool {
	return strings.EqualFold(strings.TrimSpace(q.Direction), DirectionAsc)
}

// TotalCount sums the counts of the given tags.
func TotalCount(collection []Tag) int64 {
	var total int64
	for _, t := range collection {
		total += t.Count
	}
	return total
}

// ApplyShares sets SharePercent on every tag from its count and the total
// count of the collection. When the total is zero every share is zero.
func ApplyShares(collection []Tag) int64 {
	total := TotalCount(collection)
	for i := range collection {
		if total == 0 {
			collection[i].SharePercent = 0
			continue
		}
		collection[i].SharePercent = float64(collection[i].Count) / float64(total) * 100
	}
	return total
}

// PageCount returns ceil(total/pageSize). pageSize must be positive.
func PageCount(total, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

// Clone returns a copy of the collection that shares no backing array with
// the input. A nil input yields an empty, non-nil slice.
func Clone(collection []Tag) []Tag {
	out := make([]Tag, len(collection))
	copy(out, collection)
	return out
}
