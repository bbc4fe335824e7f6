package response

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Универсальные ответы
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// Failure is the body of a rejected ingestion request.
type Failure struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RespondWithCode writes {ok:false, error:code, message} plus per-field
// errors when given.
func RespondWithCode(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	RespondWithJSON(w, status, Failure{Error: code, Message: message, Errors: fields})
}
