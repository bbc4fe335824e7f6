// Package feed builds the live and history payloads read by the map
// clients.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
)

// Palette colours routes in vehicle order.
var Palette = []string{"#2563eb", "#dc2626", "#16a34a", "#ca8a04", "#9333ea", "#0891b2"}

type Builder struct {
	devices   repositories.DeviceStore
	positions repositories.PositionStore
	loc       *time.Location
	maxPoints int
}

func NewBuilder(devices repositories.DeviceStore, positions repositories.PositionStore, loc *time.Location, maxPoints int) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Builder{devices: devices, positions: positions, loc: loc, maxPoints: maxPoints}
}

// Location is the zone used for day boundaries and timestamps.
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Filter narrows the live feed. Empty fields match everything.
type Filter struct {
	TagIDs []int64
	Status models.Status
}

// DeviceView is a device with its current snapshot.
type DeviceView struct {
	ID         int64   `json:"id"`
	Identifier string  `json:"identifier"`
	Name       *string `json:"name"`
	models.Snapshot
}

type VehicleEntry struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Plate  *string     `json:"plate"`
	Color  *string     `json:"color"`
	Device *DeviceView `json:"device"`
}

type StandaloneEntry struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Plate              *string     `json:"plate"`
	Color              *string     `json:"color"`
	IsStandaloneDevice bool        `json:"is_standalone_device"`
	Device             *DeviceView `json:"device"`
}

type LiveFeed struct {
	Vehicles          []VehicleEntry    `json:"vehicles"`
	StandaloneDevices []StandaloneEntry `json:"standaloneDevices"`
}

// Live returns the current snapshot of every vehicle and standalone device
// in scope that passes filter. Devices that never reported are kept with
// null coordinates.
func (b *Builder) Live(ctx context.Context, scope *Scope, filter Filter) (*LiveFeed, error) {
	ids := make([]int64, 0, len(scope.Vehicles)+len(scope.StandaloneDeviceIDs))
	for _, v := range scope.Vehicles {
		if v.DeviceID != nil {
			ids = append(ids, *v.DeviceID)
		}
	}
	ids = append(ids, scope.StandaloneDeviceIDs...)

	devices, err := b.devices.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load device snapshots: %w", err)
	}

	feed := &LiveFeed{Vehicles: []VehicleEntry{}, StandaloneDevices: []StandaloneEntry{}}
	for _, v := range scope.Vehicles {
		if len(filter.TagIDs) > 0 && !v.HasAnyTag(filter.TagIDs) {
			continue
		}
		var view *DeviceView
		if v.DeviceID != nil {
			if d, ok := devices[*v.DeviceID]; ok {
				view = b.deviceView(d)
			}
		}
		if filter.Status != "" && (view == nil || view.Status != filter.Status) {
			continue
		}
		feed.Vehicles = append(feed.Vehicles, VehicleEntry{
			ID:     v.ID,
			Name:   v.Name,
			Plate:  v.Plate,
			Color:  v.Color,
			Device: view,
		})
	}

	for _, id := range scope.StandaloneDeviceIDs {
		d, ok := devices[id]
		if !ok {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		feed.StandaloneDevices = append(feed.StandaloneDevices, StandaloneEntry{
			ID:                 d.ID,
			Name:               d.DisplayName(),
			IsStandaloneDevice: true,
			Device:             b.deviceView(d),
		})
	}
	return feed, nil
}

func (b *Builder) deviceView(d models.Device) *DeviceView {
	snap := d.Snapshot
	if snap.RecordedAt != nil {
		at := snap.RecordedAt.In(b.loc)
		snap.RecordedAt = &at
	}
	return &DeviceView{ID: d.ID, Identifier: d.Identifier, Name: d.Name, Snapshot: snap}
}
