package tags

import (
	"sort"
	"strings"
)

// Sort returns a sorted copy of the collection. Ordering is stable, so ties
// keep their original relative order. Unknown fields fall back to name.
func Sort(collection []Tag, sortBy string, ascending bool) []Tag {
	out := Clone(collection)

	var less func(a, b Tag) bool
	switch strings.ToLower(sortBy) {
	case SortByID:
		less = func(a, b Tag) bool { return a.ID < b.ID }
	case SortByPercentage:
		less = func(a, b Tag) bool { return a.SharePercent < b.SharePercent }
	case SortByCount:
		less = func(a, b Tag) bool { return a.Count < b.Count }
	default:
		// ordinal byte order: ".net" < "c" < "c#" < "c++" < "go"
		less = func(a, b Tag) bool { return a.Name < b.Name }
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// Page returns the page-th slice of pageSize tags (1-based). Out of range
// pages yield an empty slice.
func Page(collection []Tag, page, pageSize int) []Tag {
	if page <= 0 || pageSize <= 0 {
		return []Tag{}
	}
	start := (page - 1) * pageSize
	if start >= len(collection) {
		return []Tag{}
	}
	end := min(start+pageSize, len(collection))
	return collection[start:end]
}
