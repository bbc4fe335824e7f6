package repositories

import (
	"context"
	"database/sql"

	"github.com/evn/fleet_tracker/internal/models"
)

// FleetRepository reads the tables maintained by fleet management.
type FleetRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewFleetRepository(db *sql.DB, dialect Dialect) *FleetRepository {
	return &FleetRepository{db: db, dialect: dialect}
}

func (r *FleetRepository) VehiclesForAccount(ctx context.Context, accountID int64) ([]models.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT id, account_id, name, plate, color, device_id
		FROM vehicles
		WHERE account_id = ? AND deleted_at IS NULL
		ORDER BY id`), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			v            models.Vehicle
			plate, color sql.NullString
			device       sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Name, &plate, &color, &device); err != nil {
			return nil, err
		}
		v.Plate = stringPtr(plate)
		v.Color = stringPtr(color)
		v.DeviceID = int64Ptr(device)
		index[v.ID] = len(vehicles)
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return vehicles, nil
	}

	tagRows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT tv.vehicle_id, tv.tag_id
		FROM tag_vehicle tv
		JOIN vehicles v ON v.id = tv.vehicle_id
		WHERE v.account_id = ? AND v.deleted_at IS NULL
		ORDER BY tv.vehicle_id, tv.tag_id`), accountID)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var vehicleID, tagID int64
		if err := tagRows.Scan(&vehicleID, &tagID); err != nil {
			return nil, err
		}
		if i, ok := index[vehicleID]; ok {
			vehicles[i].TagIDs = append(vehicles[i].TagIDs, tagID)
		}
	}
	return vehicles, tagRows.Err()
}

func (r *FleetRepository) StandaloneDevicesForAccount(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT d.id
		FROM devices d
		WHERE d.account_id = ? AND d.deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM vehicles v
			WHERE v.device_id = d.id AND v.deleted_at IS NULL
		  )
		ORDER BY d.identifier`), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *FleetRepository) TagsForAccount(ctx context.Context, accountID int64) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT id, account_id, name, color
		FROM tags
		WHERE account_id = ?
		ORDER BY name, id`), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var (
			t     models.Tag
			color sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &color); err != nil {
			return nil, err
		}
		t.Color = stringPtr(color)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// SQLStore combines the SQL repositories into a Store.
type SQLStore struct {
	*DeviceRepository
	*PositionRepository
	*FleetRepository
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		DeviceRepository:   NewDeviceRepository(db, dialect),
		PositionRepository: NewPositionRepository(db, dialect),
		FleetRepository:    NewFleetRepository(db, dialect),
	}
}
