// handlers/map/history_handler.go
package handlers

import (
	"net/http"

	"github.com/evn/fleet_tracker/internal/middleware"
	"github.com/evn/fleet_tracker/internal/pkg/request"
	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/services/feed"
)

// GetDeviceHistory возвращает трек устройства за календарный день.
func (h *MapHandler) GetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, err := request.ID(r, "device_id")
	if err != nil {
		invalid(w, err)
		return
	}
	date, err := request.Date(r, "date")
	if err != nil {
		invalid(w, err)
		return
	}

	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	result, err := h.feeds.DeviceHistory(r.Context(), scope, deviceID, date)
	if err != nil {
		storageFailure(w, r, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, result)
}

// GetRoutesByTags returns one route per tagged vehicle for a day.
func (h *MapHandler) GetRoutesByTags(w http.ResponseWriter, r *http.Request) {
	tagIDs, err := request.TagIDs(r)
	if err != nil {
		invalid(w, err)
		return
	}
	if len(tagIDs) == 0 {
		invalid(w, &request.FieldError{Field: "tag_ids", Message: "The tag_ids field is required."})
		return
	}
	date, err := request.Date(r, "date")
	if err != nil {
		invalid(w, err)
		return
	}

	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	result, err := h.feeds.RoutesByTags(r.Context(), scope, tagIDs, date)
	if err != nil {
		storageFailure(w, r, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, result)
}

func (h *MapHandler) scope(w http.ResponseWriter, r *http.Request) (*feed.Scope, bool) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	scope, err := feed.LoadScope(r.Context(), h.fleet, accountID)
	if err != nil {
		storageFailure(w, r, err)
		return nil, false
	}
	return scope, true
}
