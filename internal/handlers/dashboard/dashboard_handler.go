// handlers/dashboard/dashboard_handler.go
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/middleware"
	"github.com/evn/fleet_tracker/internal/pkg/request"
	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/services/export"
	"github.com/evn/fleet_tracker/internal/services/feed"
	"github.com/evn/fleet_tracker/internal/services/stats"
)

const (
	defaultDays = 7
	maxDays     = 366
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type DashboardHandler struct {
	fleet repositories.FleetReader
	feeds *feed.Builder
	stats *stats.Service
	now   func() time.Time
}

func NewDashboardHandler(fleet repositories.FleetReader, feeds *feed.Builder, st *stats.Service) *DashboardHandler {
	return &DashboardHandler{fleet: fleet, feeds: feeds, stats: st, now: time.Now}
}

type statsBody struct {
	Days     int                  `json:"days"`
	Vehicles []stats.VehicleStats `json:"vehicles"`
}

type dashboardBody struct {
	Vehicles               []feed.VehicleEntry  `json:"vehicles"`
	VehicleStatsLast7Days  []stats.VehicleStats `json:"vehicleStatsLast7Days"`
	VehicleStatsLast30Days []stats.VehicleStats `json:"vehicleStatsLast30Days"`
}

// GetDashboard возвращает текущие позиции и статистику за 7 и 30 дней.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	liveFeed, err := h.feeds.Live(r.Context(), scope, feed.Filter{})
	if err != nil {
		storageFailure(w, r, err)
		return
	}
	windows, err := h.stats.Windows(r.Context(), scope.Vehicles, 7, 30)
	if err != nil {
		storageFailure(w, r, err)
		return
	}

	response.RespondWithJSON(w, http.StatusOK, dashboardBody{
		Vehicles:               liveFeed.Vehicles,
		VehicleStatsLast7Days:  windows[7],
		VehicleStatsLast30Days: windows[30],
	})
}

// GetStats returns per-vehicle stats over the trailing days.
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	days, rows, ok := h.window(w, r)
	if !ok {
		return
	}
	response.RespondWithJSON(w, http.StatusOK, statsBody{Days: days, Vehicles: rows})
}

// ExportStats отдаёт ту же статистику файлом XLSX.
func (h *DashboardHandler) ExportStats(w http.ResponseWriter, r *http.Request) {
	days, rows, ok := h.window(w, r)
	if !ok {
		return
	}

	now := h.now().In(h.feeds.Location())
	var buf bytes.Buffer
	if err := export.WriteStatsXLSX(&buf, days, rows, now); err != nil {
		logrus.WithError(err).Error("render stats export")
		response.RespondWithError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	filename := fmt.Sprintf("fleet-stats-%dd-%s.xlsx", days, now.Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logrus.WithError(err).Warn("write stats export")
	}
}

func (h *DashboardHandler) window(w http.ResponseWriter, r *http.Request) (int, []stats.VehicleStats, bool) {
	days, err := request.IntInRange(r, "days", defaultDays, 1, maxDays)
	if err != nil {
		var ferr *request.FieldError
		errors.As(err, &ferr)
		response.RespondWithCode(w, http.StatusUnprocessableEntity, "invalid_payload",
			"The given data was invalid.", ferr.Fields())
		return 0, nil, false
	}

	scope, ok := h.scope(w, r)
	if !ok {
		return 0, nil, false
	}
	rows, err := h.stats.LastDays(r.Context(), scope.Vehicles, days)
	if err != nil {
		storageFailure(w, r, err)
		return 0, nil, false
	}
	return days, rows, true
}

func (h *DashboardHandler) scope(w http.ResponseWriter, r *http.Request) (*feed.Scope, bool) {
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

func storageFailure(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithError(err).WithField("path", r.URL.Path).Error("dashboard query failed")
	response.RespondWithCode(w, http.StatusInternalServerError, "storage_failure",
		"The data could not be loaded.", nil)
}
