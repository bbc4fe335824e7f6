package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusUnauthorized, "Invalid token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Invalid token"}`, rec.Body.String())
}

func TestRespondWithCode(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	RespondWithCode(rec, http.StatusUnprocessableEntity, "invalid_payload", "The given data was invalid.",
		map[string]string{"latitude": "The latitude field is required."})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"invalid_payload","message":"The given data was invalid.",
		"errors":{"latitude":"The latitude field is required."}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	RespondWithCode(rec, http.StatusNotFound, "device_not_found", "Device not found.", nil)
	assert.JSONEq(t, `{"ok":false,"error":"device_not_found","message":"Device not found."}`, rec.Body.String())
}

func TestRespondWithJSON_Unencodable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusOK, map[string]interface{}{"ch": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
