// repositories/device_repository.go

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
)

const deviceColumns = `id, account_id, identifier, name, last_latitude, last_longitude,
	last_recorded_at, last_speed, last_heading, status, created_at`

type DeviceRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewDeviceRepository(db *sql.DB, dialect Dialect) *DeviceRepository {
	return &DeviceRepository{db: db, dialect: dialect}
}

func (r *DeviceRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Device, error) {
	query := r.dialect.rebind(`SELECT ` + deviceColumns + `
		FROM devices
		WHERE identifier = ? AND deleted_at IS NULL`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *DeviceRepository) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	query := r.dialect.rebind(`SELECT ` + deviceColumns + `
		FROM devices
		WHERE id = ? AND deleted_at IS NULL`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *DeviceRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Device, error) {
	result := make(map[int64]models.Device, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	match, args := r.dialect.anyOf("id", ids, nil)
	query := r.dialect.rebind(`SELECT ` + deviceColumns + `
		FROM devices
		WHERE deleted_at IS NULL AND ` + match)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result[d.ID] = *d
	}
	return result, rows.Err()
}

func (r *DeviceRepository) CreateUnowned(ctx context.Context, identifier string) (*models.Device, error) {
	now := time.Now().UTC()
	query := r.dialect.rebind(`
		INSERT INTO devices (identifier, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identifier) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, identifier, string(models.StatusOffline), now, now); err != nil {
		return nil, fmt.Errorf("insert device %q: %w", identifier, err)
	}
	return r.FindByIdentifier(ctx, identifier)
}

func (r *DeviceRepository) UpdateSnapshot(ctx context.Context, deviceID int64, snap models.Snapshot) error {
	var recordedAt interface{}
	if snap.RecordedAt != nil {
		recordedAt = snap.RecordedAt.UTC()
	}
	query := r.dialect.rebind(`
		UPDATE devices
		SET last_latitude = ?,
			last_longitude = ?,
			last_recorded_at = ?,
			last_speed = ?,
			last_heading = COALESCE(?, last_heading),
			status = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`)

	res, err := r.db.ExecContext(ctx, query,
		nullableFloat(snap.Latitude),
		nullableFloat(snap.Longitude),
		recordedAt,
		nullableFloat(snap.Speed),
		nullableInt(snap.Heading),
		string(snap.Status),
		time.Now().UTC(),
		deviceID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) LinkedVehicle(ctx context.Context, deviceID int64) (*models.Vehicle, error) {
	query := r.dialect.rebind(`
		SELECT id, account_id, name, plate, color, device_id
		FROM vehicles
		WHERE device_id = ? AND deleted_at IS NULL
		ORDER BY id
		LIMIT 1`)

	var (
		v            models.Vehicle
		plate, color sql.NullString
		device       sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&v.ID, &v.AccountID, &v.Name, &plate, &color, &device)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.Plate = stringPtr(plate)
	v.Color = stringPtr(color)
	v.DeviceID = int64Ptr(device)
	return &v, nil
}

func (r *DeviceRepository) scanOne(row *sql.Row) (*models.Device, error) {
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(s scanner) (*models.Device, error) {
	var (
		d          models.Device
		account    sql.NullInt64
		name       sql.NullString
		lat, lon   sql.NullFloat64
		recordedAt sql.NullTime
		speed      sql.NullFloat64
		heading    sql.NullInt64
		status     string
	)
	if err := s.Scan(&d.ID, &account, &d.Identifier, &name, &lat, &lon,
		&recordedAt, &speed, &heading, &status, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.AccountID = int64Ptr(account)
	d.Name = stringPtr(name)
	d.Latitude = floatPtr(lat)
	d.Longitude = floatPtr(lon)
	if recordedAt.Valid {
		t := recordedAt.Time
		d.RecordedAt = &t
	}
	d.Speed = floatPtr(speed)
	if heading.Valid {
		h := int(heading.Int64)
		d.Heading = &h
	}
	d.Status = models.Status(status)
	return &d, nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
