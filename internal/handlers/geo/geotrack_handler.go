// handlers/geotrack_handler.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/pkg/response"
	"github.com/evn/fleet_tracker/internal/services/ingest"
)

const maxBodyBytes = 64 << 10

// LocationHandler accepts pings from tracking hardware.
type LocationHandler struct {
	service *ingest.Service
}

func NewLocationHandler(service *ingest.Service) *LocationHandler {
	return &LocationHandler{service: service}
}

// PostBusLocation only accepts registered serial numbers.
func (h *LocationHandler) PostBusLocation(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ingest.StrictLookup)
}

// PostVehicleLocation registers unknown serial numbers on first contact.
func (h *LocationHandler) PostVehicleLocation(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ingest.AutoRegister)
}

type successBody struct {
	OK bool `json:"ok"`
	*ingest.Result
}

func (h *LocationHandler) handle(w http.ResponseWriter, r *http.Request, policy ingest.ResolvePolicy) {
	req, err := decodePing(w, r)
	if err == nil {
		var result *ingest.Result
		result, err = h.service.Ingest(r.Context(), policy, req)
		if err == nil {
			response.RespondWithJSON(w, http.StatusOK, successBody{OK: true, Result: result})
			return
		}
	}

	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		response.RespondWithCode(w, http.StatusUnprocessableEntity, "invalid_payload",
			"The given data was invalid.", verr.Fields)
	case errors.Is(err, ingest.ErrInvalidPayload):
		response.RespondWithCode(w, http.StatusUnprocessableEntity, "invalid_payload",
			"The given data was invalid.", nil)
	case errors.Is(err, ingest.ErrDeviceNotFound):
		response.RespondWithCode(w, http.StatusNotFound, "device_not_found",
			"Device not found for provided serial_number.", nil)
	default:
		logrus.WithError(err).WithField("path", r.URL.Path).Error("ping rejected")
		response.RespondWithCode(w, http.StatusInternalServerError, "storage_failure",
			"The ping could not be stored.", nil)
	}
}

// decodePing reads the JSON body. Values of the wrong JSON type, such as
// numbers sent as strings, are reported against their field.
func decodePing(w http.ResponseWriter, r *http.Request) (ingest.PingRequest, error) {
	var req ingest.PingRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err == nil {
		return req, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return req, ingest.NewFieldError(typeErr.Field, "The "+typeErr.Field+" field must be a "+expected(typeErr)+".")
	}
	return req, ingest.NewFieldError("body", "The request body must be a JSON object.")
}

func expected(e *json.UnmarshalTypeError) string {
	if e.Type.Kind() == reflect.String {
		return "string"
	}
	return "number"
}
