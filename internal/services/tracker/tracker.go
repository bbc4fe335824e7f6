// Package tracker applies pings to the live device snapshot.
package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
)

// Ping carries the validated values of one report.
type Ping struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Angle     *float64
}

type Tracker struct {
	devices repositories.DeviceStore
	locker  Locker
}

// New builds a tracker that serialises updates per device with an
// in-process keyed mutex followed by any extra lockers (e.g. Redis).
func New(devices repositories.DeviceStore, extra ...Locker) *Tracker {
	lockers := chain{NewKeyedMutex()}
	for _, l := range extra {
		if l != nil {
			lockers = append(lockers, l)
		}
	}
	return &Tracker{devices: devices, locker: lockers}
}

// DeriveStatus is moving only for a reported speed above zero.
func DeriveStatus(speed *float64) models.Status {
	if speed != nil && *speed > 0 {
		return models.StatusMoving
	}
	return models.StatusStopped
}

// RoundHeading rounds half away from zero; nil stays nil.
func RoundHeading(angle *float64) *int {
	if angle == nil {
		return nil
	}
	h := int(math.Round(*angle))
	return &h
}

// ApplyPing replaces the snapshot of deviceID with the ping values. The
// returned snapshot has a nil Heading when the ping carried no angle; the
// stored heading is then left as it was.
//
// No check is made against the previous recorded_at: a late ping still
// wins.
func (t *Tracker) ApplyPing(ctx context.Context, deviceID int64, ping Ping, receivedAt time.Time) (models.Snapshot, error) {
	lat, lon := ping.Latitude, ping.Longitude
	recordedAt := receivedAt
	snap := models.Snapshot{
		Latitude:   &lat,
		Longitude:  &lon,
		RecordedAt: &recordedAt,
		Speed:      copyFloat(ping.Speed),
		Heading:    RoundHeading(ping.Angle),
		Status:     DeriveStatus(ping.Speed),
	}

	release, err := t.locker.Acquire(ctx, deviceID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("lock device %d: %w", deviceID, err)
	}
	defer release()

	if err := t.devices.UpdateSnapshot(ctx, deviceID, snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("update snapshot of device %d: %w", deviceID, err)
	}
	return snap, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
