package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
)

// VehicleStats is the rounded window summary of one vehicle.
type VehicleStats struct {
	VehicleID   int64   `json:"vehicle_id"`
	VehicleName string  `json:"vehicle_name"`
	Plate       *string `json:"plate"`
	Stats
}

type Service struct {
	positions repositories.PositionStore
	now       func() time.Time
}

func NewService(positions repositories.PositionStore) *Service {
	return &Service{positions: positions, now: time.Now}
}

// WithClock replaces the clock used to place windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ForVehicles computes stats over [since, now] for every vehicle, in input
// order. Vehicles without a device get zero stats.
func (s *Service) ForVehicles(ctx context.Context, vehicles []models.Vehicle, since time.Time) ([]VehicleStats, error) {
	deviceIDs := make([]int64, 0, len(vehicles))
	for _, v := range vehicles {
		if v.DeviceID != nil {
			deviceIDs = append(deviceIDs, *v.DeviceID)
		}
	}

	byDevice, err := s.positions.QueryRangeMulti(ctx, deviceIDs, since, s.now())
	if err != nil {
		return nil, fmt.Errorf("load positions since %s: %w", since.Format(time.RFC3339), err)
	}

	result := make([]VehicleStats, 0, len(vehicles))
	for _, v := range vehicles {
		var st Stats
		if v.DeviceID != nil {
			st = Compute(byDevice[*v.DeviceID])
		}
		result = append(result, VehicleStats{
			VehicleID:   v.ID,
			VehicleName: v.Name,
			Plate:       v.Plate,
			Stats:       st.Rounded(),
		})
	}
	return result, nil
}

// LastDays is ForVehicles over the trailing number of days.
func (s *Service) LastDays(ctx context.Context, vehicles []models.Vehicle, days int) ([]VehicleStats, error) {
	return s.ForVehicles(ctx, vehicles, s.now().AddDate(0, 0, -days))
}

// Windows computes one LastDays result per entry of days concurrently.
func (s *Service) Windows(ctx context.Context, vehicles []models.Vehicle, days ...int) (map[int][]VehicleStats, error) {
	results := make([][]VehicleStats, len(days))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range days {
		g.Go(func() error {
			st, err := s.LastDays(gctx, vehicles, d)
			if err != nil {
				return err
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int][]VehicleStats, len(days))
	for i, d := range days {
		out[d] = results[i]
	}
	return out, nil
}
