// models/device.go
package models

import "time"

// Status is the coarse movement state shown on the live map.
type Status string

const (
	StatusOffline Status = "offline"
	StatusStopped Status = "stopped"
	StatusMoving  Status = "moving"
)

// Valid reports whether s is one of the known device states.
func (s Status) Valid() bool {
	switch s {
	case StatusOffline, StatusStopped, StatusMoving:
		return true
	}
	return false
}

// Snapshot is the "last known" state of a device. Pointers separate
// "never reported" from a zero value.
type Snapshot struct {
	Latitude   *float64   `json:"last_latitude"`
	Longitude  *float64   `json:"last_longitude"`
	RecordedAt *time.Time `json:"last_recorded_at"`
	Speed      *float64   `json:"last_speed"`
	Heading    *int       `json:"last_heading"`
	Status     Status     `json:"status"`
}

// HasFix is false until the device has reported at least once.
func (s Snapshot) HasFix() bool {
	return s.Latitude != nil && s.Longitude != nil
}

type Device struct {
	ID         int64   `json:"id"`
	Identifier string  `json:"identifier"`
	Name       *string `json:"name"`
	AccountID  *int64  `json:"account_id,omitempty"`
	Snapshot
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName falls back to the hardware identifier.
func (d Device) DisplayName() string {
	if d.Name != nil && *d.Name != "" {
		return *d.Name
	}
	return d.Identifier
}
