// Package request parses query parameters shared by the read endpoints.
package request

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
)

// FieldError names the offending query parameter.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Fields is the error in the shape of the invalid_payload body.
func (e *FieldError) Fields() map[string]string {
	return map[string]string{e.Field: e.Message}
}

// TagIDs collects tag_ids[] and tag_ids. Each value may itself be a
// comma-separated list; empty items are skipped.
func TagIDs(r *http.Request) ([]int64, error) {
	q := r.URL.Query()
	raw := append(q["tag_ids[]"], q["tag_ids"]...)

	ids := []int64{}
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, &FieldError{Field: "tag_ids", Message: fmt.Sprintf("The tag_ids field contains an invalid id %q.", part)}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Status reads an optional status filter.
func Status(r *http.Request) (models.Status, error) {
	s := models.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if s != "" && !s.Valid() {
		return "", &FieldError{Field: "status", Message: "The selected status is invalid."}
	}
	return s, nil
}

// Date reads a required YYYY-MM-DD parameter.
func Date(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", &FieldError{Field: name, Message: "The " + name + " field is required."}
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return "", &FieldError{Field: name, Message: "The " + name + " field must be a date in YYYY-MM-DD format."}
	}
	return v, nil
}

// ID reads a required positive integer parameter.
func ID(r *http.Request, name string) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, &FieldError{Field: name, Message: "The " + name + " field is required."}
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &FieldError{Field: name, Message: "The " + name + " field must be a positive integer."}
	}
	return id, nil
}

// IntInRange reads an optional integer within [lo, hi].
func IntInRange(r *http.Request, name string, fallback, lo, hi int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, &FieldError{Field: name, Message: fmt.Sprintf("The %s field must be between %d and %d.", name, lo, hi)}
	}
	return n, nil
}
