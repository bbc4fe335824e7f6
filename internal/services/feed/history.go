package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
)

const dateLayout = "2006-01-02"

// DayRange returns 00:00:00 and 23:59:59 of date in loc. Positions inside
// the final second of the day fall outside the range.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return day, next.Add(-time.Second), nil
}

type HistoryVehicle struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Plate *string `json:"plate"`
}

type HistoryDevice struct {
	ID         int64   `json:"id"`
	Identifier string  `json:"identifier"`
	Name       *string `json:"name"`
}

type DeviceHistory struct {
	Vehicle   *HistoryVehicle   `json:"vehicle"`
	Device    *HistoryDevice    `json:"device"`
	Positions []models.Position `json:"positions"`
}

type Route struct {
	VehicleID   int64             `json:"vehicle_id"`
	VehicleName string            `json:"vehicle_name"`
	Plate       *string           `json:"plate"`
	DeviceID    int64             `json:"device_id"`
	Color       string            `json:"color"`
	Positions   []models.Position `json:"positions"`
}

type Routes struct {
	Routes []Route `json:"routes"`
}

// DeviceHistory returns the thinned route of deviceID on date. A device
// outside scope, or one that no longer exists, yields an empty history.
func (b *Builder) DeviceHistory(ctx context.Context, scope *Scope, deviceID int64, date string) (*DeviceHistory, error) {
	from, to, err := DayRange(date, b.loc)
	if err != nil {
		return nil, err
	}

	empty := &DeviceHistory{Positions: []models.Position{}}
	if !scope.OwnsDevice(deviceID) {
		return empty, nil
	}
	device, err := b.devices.FindByID(ctx, deviceID)
	if errors.Is(err, repositories.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load device %d: %w", deviceID, err)
	}

	positions, err := b.positions.QueryRange(ctx, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load positions of device %d: %w", deviceID, err)
	}

	history := &DeviceHistory{
		Device:    &HistoryDevice{ID: device.ID, Identifier: device.Identifier, Name: device.Name},
		Positions: b.present(positions),
	}
	if v := scope.VehicleForDevice(deviceID); v != nil {
		history.Vehicle = &HistoryVehicle{ID: v.ID, Name: v.Name, Plate: v.Plate}
	}
	return history, nil
}

// RoutesByTags returns one coloured route per in-scope vehicle that has a
// linked device and carries any of the requested tags the account owns.
func (b *Builder) RoutesByTags(ctx context.Context, scope *Scope, tagIDs []int64, date string) (*Routes, error) {
	from, to, err := DayRange(date, b.loc)
	if err != nil {
		return nil, err
	}

	out := &Routes{Routes: []Route{}}
	allowed := scope.AllowedTags(tagIDs)
	if len(allowed) == 0 {
		return out, nil
	}

	// slot is the position among all tagged vehicles, so a vehicle without
	// a device still takes its colour.
	type tagged struct {
		vehicle models.Vehicle
		slot    int
	}
	var (
		vehicles  []tagged
		deviceIDs []int64
	)
	slot := 0
	for _, v := range scope.Vehicles {
		if !v.HasAnyTag(allowed) {
			continue
		}
		if v.DeviceID != nil {
			vehicles = append(vehicles, tagged{vehicle: v, slot: slot})
			deviceIDs = append(deviceIDs, *v.DeviceID)
		}
		slot++
	}
	if len(vehicles) == 0 {
		return out, nil
	}

	byDevice, err := b.positions.QueryRangeMulti(ctx, deviceIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	for _, t := range vehicles {
		v := t.vehicle
		out.Routes = append(out.Routes, Route{
			VehicleID:   v.ID,
			VehicleName: v.Name,
			Plate:       v.Plate,
			DeviceID:    *v.DeviceID,
			Color:       Palette[t.slot%len(Palette)],
			Positions:   b.present(byDevice[*v.DeviceID]),
		})
	}
	return out, nil
}

// present thins positions and moves their timestamps into the configured
// zone.
func (b *Builder) present(positions []models.Position) []models.Position {
	thinned := Thin(positions, b.maxPoints)
	out := make([]models.Position, len(thinned))
	for i, p := range thinned {
		p.RecordedAt = p.RecordedAt.In(b.loc)
		out[i] = p
	}
	return out
}
