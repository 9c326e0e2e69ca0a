// Package v1 provides the REST API handlers for the tag cache.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sotags/sotags-api/internal/api/common"
	"github.com/sotags/sotags-api/internal/service"
	"github.com/sotags/sotags-api/internal/sync"
	"github.com/sotags/sotags-api/internal/tags"
	"github.com/sotags/sotags-api/internal/validators"
)

const (
	// TotalCountHeader carries the size of the whole collection on listing responses
	TotalCountHeader = "X-Total-Count"

	validationFailedPrefix = "Validation has FAILED! Error: "

	// MsgRefreshed is returned by a successful refresh
	MsgRefreshed = "Tags have been refreshed."

	// MsgUpstreamFailed is returned when tags could not be fetched or stored
	MsgUpstreamFailed = "Request failed. Please verify your connection and ensure the " +
		"Stack Overflow API's rate limit has not been exceeded."

	msgInternalError = "Internal server error"
)

// RefreshResponse is returned by a successful refresh
type RefreshResponse struct {
	Message string `json:"message" example:"Tags have been refreshed."`
	Count   int    `json:"count" example:"1001"`
}

// Routes defines the tag API routes with dependency injection
type Routes struct {
	service service.TagService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.TagService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates the router for the /tags endpoints
func Router(svc service.TagService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/", routes.listTags)
	r.Post("/refresh", routes.refreshTags)
	r.Get("/status", routes.syncStatus)

	return r
}

// listTags handles GET /tags
//
// @Summary		List tags
// @Description	Get one sorted page of the cached Stack Overflow tags, filling the cache first if needed
// @Tags			tags
// @Produce		json
// @Param			sortBy		query		string	false	"Sort field: id, name, percentage or count"	default(name)
// @Param			direction	query		string	false	"Sort direction: asc or desc"				default(desc)
// @Param			page		query		int		false	"1-based page"								default(1)
// @Param			pageSize	query		int		false	"Tags per page"								default(100)
// @Success		200			{array}		tags.Tag
// @Header			200			{integer}	X-Total-Count	"Size of the whole collection"
// @Failure		400			{object}	common.ErrorResponse
// @Failure		502			{object}	common.ErrorResponse
// @Router			/tags [get]
func (rr *Routes) listTags(w http.ResponseWriter, r *http.Request) {
	page, pageErr := common.QueryInt(r, "page", tags.DefaultPage)
	pageSize, sizeErr := common.QueryInt(r, "pageSize", tags.DefaultPageSize)
	if pageErr != nil || sizeErr != nil {
		common.WriteErrorResponse(w, validationFailedPrefix+validators.MsgInvalidPagination, http.StatusBadRequest)
		return
	}

	result, err := rr.service.ListTags(r.Context(),
		service.WithSortBy(common.QueryString(r, "sortBy", tags.DefaultSortBy)),
		service.WithDirection(common.QueryString(r, "direction", tags.DefaultDirection)),
		service.WithPage(page),
		service.WithPageSize(pageSize),
	)
	if err != nil {
		var validationErr *validators.ValidationError
		switch {
		case errors.As(err, &validationErr):
			common.WriteErrorResponse(w, validationFailedPrefix+validationErr.Message, http.StatusBadRequest)
		case errors.Is(err, sync.ErrUpstream):
			slog.ErrorContext(r.Context(), "Failed to fill tag cache", "error", err)
			common.WriteErrorResponse(w, MsgUpstreamFailed, http.StatusBadGateway)
		default:
			slog.ErrorContext(r.Context(), "Failed to list tags", "error", err)
			common.WriteErrorResponse(w, msgInternalError, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set(TotalCountHeader, strconv.Itoa(result.Total))
	common.WriteJSONResponse(w, result.Tags, http.StatusOK)
}

// refreshTags handles POST /tags/refresh
//
// @Summary		Refresh tags
// @Description	Clear the cache and refetch every tag from the Stack Overflow API
// @Tags			tags
// @Produce		json
// @Success		200	{object}	RefreshResponse
// @Failure		500	{object}	common.ErrorResponse
// @Router			/tags/refresh [post]
func (rr *Routes) refreshTags(w http.ResponseWriter, r *http.Request) {
	result, err := rr.service.RefreshTags(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Tag refresh failed", "error", err)
		common.WriteErrorResponse(w, MsgUpstreamFailed, http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, RefreshResponse{
		Message: MsgRefreshed,
		Count:   result.Count,
	}, http.StatusOK)
}

// syncStatus handles GET /tags/status
//
// @Summary		Sync status
// @Description	Get the state of the most recent fetch cycle
// @Tags			tags
// @Produce		json
// @Success		200	{object}	status.SyncStatus
// @Router			/tags/status [get]
func (rr *Routes) syncStatus(w http.ResponseWriter, r *http.Request) {
	common.WriteJSONResponse(w, rr.service.SyncStatus(r.Context()), http.StatusOK)
}
