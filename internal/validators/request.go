// Package validators provides validation of listing requests against the
// cached tag collection.
package validators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sotags/sotags-api/internal/tags"
)

// Messages returned by RequestValidator for rejected requests.
const (
	MsgInvalidPagination = "Invalid page or pageSize parameters."
	MsgInvalidDirection  = "Invalid sort direction parameter."
	msgInvalidSortBy     = "Invalid sortBy parameter: %s."
)

// ErrNilCollection is returned when Validate is called without a collection.
// It indicates a programming error, not bad user input.
var ErrNilCollection = errors.New("tag collection is required")

var sortFields = map[string]struct{}{
	tags.SortByID:         {},
	tags.SortByName:       {},
	tags.SortByPercentage: {},
	tags.SortByCount:      {},
}

// ValidationError is a rejection of a listing request with a message that
// can be shown to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RequestValidator checks listing parameters against the current collection.
type RequestValidator struct{}

// NewRequestValidator returns a RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

// Validate runs the pagination, direction and sortBy checks in that order and
// returns the first failure as a *ValidationError. A nil collection yields
// ErrNilCollection.
func (*RequestValidator) Validate(q tags.Query, collection []tags.Tag) error {
	if collection == nil {
		return ErrNilCollection
	}

	if !validPagination(q.Page, q.PageSize, len(collection)) {
		return &ValidationError{Message: MsgInvalidPagination}
	}

	if !validDirection(q.Direction) {
		return &ValidationError{Message: MsgInvalidDirection}
	}

	if !validSortBy(q.SortBy) {
		return &ValidationError{Message: fmt.Sprintf(msgInvalidSortBy, q.SortBy)}
	}

	return nil
}

func validPagination(page, pageSize, total int) bool {
	if page <= 0 || pageSize <= 0 {
		return false
	}
	if pageSize > total {
		return false
	}
	return page <= tags.PageCount(total, pageSize)
}

func validDirection(direction string) bool {
	d := strings.TrimSpace(direction)
	return strings.EqualFold(d, tags.DirectionAsc) || strings.EqualFold(d, tags.DirectionDesc)
}

// validSortBy lowercases but does not trim, so " name " is rejected.
func validSortBy(sortBy string) bool {
	if sortBy == "" {
		return false
	}
	_, ok := sortFields[strings.ToLower(sortBy)]
	return ok
}
