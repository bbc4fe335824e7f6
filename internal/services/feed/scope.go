package feed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
)

// Scope is the set of fleet ids an account may read. Feed operations
// never look outside it; ids not in the scope are treated as absent.
type Scope struct {
	AccountID           int64
	Vehicles            []models.Vehicle
	StandaloneDeviceIDs []int64
	Tags                []models.Tag
}

// LoadScope reads the vehicles, standalone devices and tags of accountID.
func LoadScope(ctx context.Context, fleet repositories.FleetReader, accountID int64) (*Scope, error) {
	scope := &Scope{AccountID: accountID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vehicles, err := fleet.VehiclesForAccount(gctx, accountID)
		if err != nil {
			return fmt.Errorf("load vehicles: %w", err)
		}
		scope.Vehicles = vehicles
		return nil
	})
	g.Go(func() error {
		ids, err := fleet.StandaloneDevicesForAccount(gctx, accountID)
		if err != nil {
			return fmt.Errorf("load standalone devices: %w", err)
		}
		scope.StandaloneDeviceIDs = ids
		return nil
	})
	g.Go(func() error {
		tags, err := fleet.TagsForAccount(gctx, accountID)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		scope.Tags = tags
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scope, nil
}

// VehicleForDevice returns the in-scope vehicle linked to deviceID.
func (s *Scope) VehicleForDevice(deviceID int64) *models.Vehicle {
	for i := range s.Vehicles {
		if d := s.Vehicles[i].DeviceID; d != nil && *d == deviceID {
			return &s.Vehicles[i]
		}
	}
	return nil
}

// OwnsDevice reports whether deviceID is linked to one of the account's
// vehicles or is one of its standalone devices.
func (s *Scope) OwnsDevice(deviceID int64) bool {
	if s.VehicleForDevice(deviceID) != nil {
		return true
	}
	for _, id := range s.StandaloneDeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// AllowedTags keeps the requested ids that belong to the account, in
// request order without duplicates.
func (s *Scope) AllowedTags(requested []int64) []int64 {
	owned := make(map[int64]bool, len(s.Tags))
	for _, t := range s.Tags {
		owned[t.ID] = true
	}
	allowed := make([]int64, 0, len(requested))
	seen := make(map[int64]bool, len(requested))
	for _, id := range requested {
		if owned[id] && !seen[id] {
			seen[id] = true
			allowed = append(allowed, id)
		}
	}
	return allowed
}
