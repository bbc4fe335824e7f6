package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
)

// MemoryStore keeps everything in process. It backs the "memory" database
// driver and the service tests.
type MemoryStore struct {
	mu           sync.RWMutex
	devices      map[int64]*models.Device
	byIdentifier map[string]int64
	positions    []models.Position
	vehicles     []models.Vehicle
	tags         []models.Tag

	nextDevice   int64
	nextPosition int64
	nextVehicle  int64
	nextTag      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:      map[int64]*models.Device{},
		byIdentifier: map[string]int64{},
	}
}

// AddDevice stores d with a fresh id. An empty status becomes offline.
func (m *MemoryStore) AddDevice(d models.Device) models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextDevice++
	d.ID = m.nextDevice
	if d.Status == "" {
		d.Status = models.StatusOffline
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	stored := d
	m.devices[d.ID] = &stored
	m.byIdentifier[d.Identifier] = d.ID
	return d
}

func (m *MemoryStore) AddVehicle(v models.Vehicle) models.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextVehicle++
	v.ID = m.nextVehicle
	v.TagIDs = append([]int64(nil), v.TagIDs...)
	m.vehicles = append(m.vehicles, v)
	return v
}

func (m *MemoryStore) AddTag(t models.Tag) models.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTag++
	t.ID = m.nextTag
	m.tags = append(m.tags, t)
	return t
}

func (m *MemoryStore) DeviceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

func (m *MemoryStore) PositionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

func (m *MemoryStore) FindByIdentifier(_ context.Context, identifier string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byIdentifier[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	d := *m.devices[id]
	return &d, nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := *stored
	return &d, nil
}

func (m *MemoryStore) FindByIDs(_ context.Context, ids []int64) (map[int64]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[int64]models.Device, len(ids))
	for _, id := range ids {
		if d, ok := m.devices[id]; ok {
			result[id] = *d
		}
	}
	return result, nil
}

func (m *MemoryStore) CreateUnowned(ctx context.Context, identifier string) (*models.Device, error) {
	m.mu.Lock()
	if _, ok := m.byIdentifier[identifier]; !ok {
		m.nextDevice++
		m.devices[m.nextDevice] = &models.Device{
			ID:         m.nextDevice,
			Identifier: identifier,
			Snapshot:   models.Snapshot{Status: models.StatusOffline},
			CreatedAt:  time.Now().UTC(),
		}
		m.byIdentifier[identifier] = m.nextDevice
	}
	m.mu.Unlock()
	return m.FindByIdentifier(ctx, identifier)
}

func (m *MemoryStore) UpdateSnapshot(_ context.Context, deviceID int64, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	heading := d.Heading
	if snap.Heading != nil {
		heading = snap.Heading
	}
	d.Snapshot = snap
	d.Heading = heading
	return nil
}

func (m *MemoryStore) LinkedVehicle(_ context.Context, deviceID int64) (*models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.vehicles {
		if v.DeviceID != nil && *v.DeviceID == deviceID {
			found := v
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Append(_ context.Context, pos *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPosition++
	pos.ID = m.nextPosition
	m.positions = append(m.positions, *pos)
	return nil
}

func (m *MemoryStore) QueryRange(ctx context.Context, deviceID int64, from, to time.Time) ([]models.Position, error) {
	multi, err := m.QueryRangeMulti(ctx, []int64{deviceID}, from, to)
	if err != nil {
		return nil, err
	}
	if positions, ok := multi[deviceID]; ok {
		return positions, nil
	}
	return []models.Position{}, nil
}

func (m *MemoryStore) QueryRangeMulti(_ context.Context, deviceIDs []int64, from, to time.Time) (map[int64][]models.Position, error) {
	wanted := make(map[int64]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		wanted[id] = true
	}

	m.mu.RLock()
	result := make(map[int64][]models.Position, len(deviceIDs))
	for _, p := range m.positions {
		if !wanted[p.DeviceID] || p.RecordedAt.Before(from) || p.RecordedAt.After(to) {
			continue
		}
		result[p.DeviceID] = append(result[p.DeviceID], p)
	}
	m.mu.RUnlock()

	for _, positions := range result {
		sort.Slice(positions, func(i, j int) bool {
			if positions[i].RecordedAt.Equal(positions[j].RecordedAt) {
				return positions[i].ID < positions[j].ID
			}
			return positions[i].RecordedAt.Before(positions[j].RecordedAt)
		})
	}
	return result, nil
}

func (m *MemoryStore) VehiclesForAccount(_ context.Context, accountID int64) ([]models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vehicles := []models.Vehicle{}
	for _, v := range m.vehicles {
		if v.AccountID == accountID {
			v.TagIDs = append([]int64(nil), v.TagIDs...)
			vehicles = append(vehicles, v)
		}
	}
	return vehicles, nil
}

func (m *MemoryStore) StandaloneDevicesForAccount(_ context.Context, accountID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	linked := map[int64]bool{}
	for _, v := range m.vehicles {
		if v.DeviceID != nil {
			linked[*v.DeviceID] = true
		}
	}
	var owned []*models.Device
	for _, d := range m.devices {
		if d.AccountID != nil && *d.AccountID == accountID && !linked[d.ID] {
			owned = append(owned, d)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Identifier < owned[j].Identifier })

	ids := make([]int64, 0, len(owned))
	for _, d := range owned {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (m *MemoryStore) TagsForAccount(_ context.Context, accountID int64) ([]models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := []models.Tag{}
	for _, t := range m.tags {
		if t.AccountID == accountID {
			tags = append(tags, t)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}
