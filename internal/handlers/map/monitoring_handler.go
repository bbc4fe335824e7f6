// handlers/map/monitoring_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/middleware"
	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/pkg/request"
	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/services/feed"
	"github.com/evn/fleet_tracker/internal/services/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: ограничить список origin после выноса панели на отдельный домен
	},
}

// MapHandler serves the map screens: live positions, history and routes.
type MapHandler struct {
	fleet repositories.FleetReader
	feeds *feed.Builder
	hub   *live.Hub
}

func NewMapHandler(fleet repositories.FleetReader, feeds *feed.Builder) *MapHandler {
	return &MapHandler{fleet: fleet, feeds: feeds}
}

// WithHub enables the websocket live stream.
func (h *MapHandler) WithHub(hub *live.Hub) *MapHandler {
	h.hub = hub
	return h
}

// LiveFeed is the live.Source used by the hub. Scope is reloaded on every
// call so fleet changes show up on the next push.
func (h *MapHandler) LiveFeed(ctx context.Context, accountID int64, filter feed.Filter) (*feed.LiveFeed, error) {
	scope, err := feed.LoadScope(ctx, h.fleet, accountID)
	if err != nil {
		return nil, err
	}
	return h.feeds.Live(ctx, scope, filter)
}

// GetPositions возвращает текущие позиции транспорта и отдельных трекеров.
func (h *MapHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		invalid(w, err)
		return
	}
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.LiveFeed(r.Context(), accountID, filter)
	if err != nil {
		storageFailure(w, r, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, result)
}

// GetTags lists the caller's tags for the filter pickers.
func (h *MapHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	tags, err := h.fleet.TagsForAccount(r.Context(), accountID)
	if err != nil {
		storageFailure(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	response.RespondWithJSON(w, http.StatusOK, map[string][]models.Tag{"tags": tags})
}

// LiveSocket upgrades to a websocket and streams the live feed.
func (h *MapHandler) LiveSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		response.RespondWithError(w, http.StatusNotFound, "Live stream is disabled")
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		invalid(w, err)
		return
	}
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.hub.Attach(conn, accountID, filter)
}

func parseFilter(r *http.Request) (feed.Filter, error) {
	tagIDs, err := request.TagIDs(r)
	if err != nil {
		return feed.Filter{}, err
	}
	status, err := request.Status(r)
	if err != nil {
		return feed.Filter{}, err
	}
	return feed.Filter{TagIDs: tagIDs, Status: status}, nil
}

func invalid(w http.ResponseWriter, err error) {
	var ferr *request.FieldError
	var fields map[string]string
	if errors.As(err, &ferr) {
		fields = ferr.Fields()
	}
	response.RespondWithCode(w, http.StatusUnprocessableEntity, "invalid_payload",
		"The given data was invalid.", fields)
}

func storageFailure(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithError(err).WithField("path", r.URL.Path).Error("fleet query failed")
	response.RespondWithCode(w, http.StatusInternalServerError, "storage_failure",
		"The data could not be loaded.", nil)
}
