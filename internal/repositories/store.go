package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
)

// ErrNotFound is returned when a lookup matches no live row.
var ErrNotFound = errors.New("record not found")

// DeviceStore owns the device rows and their live snapshot columns.
type DeviceStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Device, error)
	FindByID(ctx context.Context, id int64) (*models.Device, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Device, error)
	// CreateUnowned inserts a device without an account unless the
	// identifier already exists, and returns the stored row either way.
	CreateUnowned(ctx context.Context, identifier string) (*models.Device, error)
	// UpdateSnapshot writes every snapshot column in one statement. A nil
	// Heading keeps the stored heading.
	UpdateSnapshot(ctx context.Context, deviceID int64, snap models.Snapshot) error
	// LinkedVehicle returns nil, nil when no vehicle references the device.
	LinkedVehicle(ctx context.Context, deviceID int64) (*models.Vehicle, error)
}

// PositionStore is the append-only position history. Range bounds are
// inclusive and results are ordered by recorded_at, then id.
type PositionStore interface {
	Append(ctx context.Context, pos *models.Position) error
	QueryRange(ctx context.Context, deviceID int64, from, to time.Time) ([]models.Position, error)
	QueryRangeMulti(ctx context.Context, deviceIDs []int64, from, to time.Time) (map[int64][]models.Position, error)
}

// FleetReader exposes the account-owned vehicles, tags and devices. It is
// the read side of the fleet management collaborator and is only used to
// build the set of ids a caller may see.
type FleetReader interface {
	VehiclesForAccount(ctx context.Context, accountID int64) ([]models.Vehicle, error)
	StandaloneDevicesForAccount(ctx context.Context, accountID int64) ([]int64, error)
	TagsForAccount(ctx context.Context, accountID int64) ([]models.Tag, error)
}

// Store bundles the three stores behind one backend.
type Store interface {
	DeviceStore
	PositionStore
	FleetReader
}
