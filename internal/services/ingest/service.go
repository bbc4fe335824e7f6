// Package ingest turns device pings into snapshot updates and position
// history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/services/tracker"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrDeviceNotFound = errors.New("device not found")
	ErrStorage        = errors.New("storage failure")
)

// ResolvePolicy decides what happens to a serial number with no device.
type ResolvePolicy int

const (
	// StrictLookup rejects unknown serial numbers.
	StrictLookup ResolvePolicy = iota
	// AutoRegister creates an unowned device on first contact.
	AutoRegister
)

func (p ResolvePolicy) String() string {
	if p == AutoRegister {
		return "auto_register"
	}
	return "strict"
}

type DeviceRef struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
}

type VehicleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PositionRef struct {
	ID         int64     `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Result describes an accepted ping.
type Result struct {
	Device   DeviceRef   `json:"device"`
	Vehicle  *VehicleRef `json:"vehicle"`
	Position PositionRef `json:"position"`
}

type Store interface {
	repositories.DeviceStore
	repositories.PositionStore
}

type Service struct {
	store   Store
	tracker *tracker.Tracker
	loc     *time.Location
	now     func() time.Time
}

func NewService(store Store, tr *tracker.Tracker, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, tracker: tr, loc: loc, now: time.Now}
}

// WithClock replaces the receipt clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest validates req, resolves its device according to policy, updates
// the device snapshot and appends a position stamped with the receipt
// time. The snapshot is written first; if the append then fails the
// snapshot is not rolled back.
func (s *Service) Ingest(ctx context.Context, policy ResolvePolicy, req PingRequest) (*Result, error) {
	req = req.normalize(policy)
	if err := req.validate(); err != nil {
		return nil, err
	}

	device, err := s.resolve(ctx, policy, req.SerialNumber)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.store.LinkedVehicle(ctx, device.ID)
	if err != nil {
		return nil, s.storageError("load linked vehicle", device, err)
	}

	receivedAt := s.now().In(s.loc)
	snap, err := s.tracker.ApplyPing(ctx, device.ID, tracker.Ping{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Speed:     req.Speed,
		Angle:     req.Angle,
	}, receivedAt)
	if err != nil {
		return nil, s.storageError("apply ping", device, err)
	}

	pos := &models.Position{
		DeviceID:   device.ID,
		Latitude:   *snap.Latitude,
		Longitude:  *snap.Longitude,
		RecordedAt: receivedAt,
		Speed:      snap.Speed,
		Heading:    snap.Heading,
	}
	if err := s.store.Append(ctx, pos); err != nil {
		return nil, s.storageError("append position", device, err)
	}

	logrus.WithFields(logrus.Fields{
		"device_id":  device.ID,
		"identifier": device.Identifier,
		"policy":     policy.String(),
		"status":     snap.Status,
	}).Debug("ping accepted")

	result := &Result{
		Device:   DeviceRef{ID: device.ID, Identifier: device.Identifier},
		Position: PositionRef{ID: pos.ID, RecordedAt: receivedAt},
	}
	if vehicle != nil {
		result.Vehicle = &VehicleRef{ID: vehicle.ID, Name: vehicle.Name}
	}
	return result, nil
}

func (s *Service) resolve(ctx context.Context, policy ResolvePolicy, identifier string) (*models.Device, error) {
	device, err := s.store.FindByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return device, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("%w: find device %q: %w", ErrStorage, identifier, err)
	case policy == StrictLookup:
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, identifier)
	}

	device, err = s.store.CreateUnowned(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: register device %q: %w", ErrStorage, identifier, err)
	}
	logrus.WithFields(logrus.Fields{
		"device_id":  device.ID,
		"identifier": identifier,
	}).Info("registered unowned device")
	return device, nil
}

func (s *Service) storageError(step string, device *models.Device, err error) error {
	logrus.WithFields(logrus.Fields{
		"device_id": device.ID,
		"step":      step,
	}).WithError(err).Error("ingest failed")
	return fmt.Errorf("%w: %s: %w", ErrStorage, step, err)
}
