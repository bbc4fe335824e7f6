// models/position.go

package models

import "time"

// Position is one accepted ping. Rows are never updated.
type Position struct {
	ID         int64     `json:"id"`
	DeviceID   int64     `json:"device_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
	Speed      *float64  `json:"speed"`
	Heading    *int      `json:"heading"`
}
