// repositories/position_repository.go

package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/evn/fleet_tracker/internal/models"
)

type PositionRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewPositionRepository(db *sql.DB, dialect Dialect) *PositionRepository {
	return &PositionRepository{db: db, dialect: dialect}
}

func (r *PositionRepository) Append(ctx context.Context, pos *models.Position) error {
	query := r.dialect.rebind(`
		INSERT INTO positions (device_id, latitude, longitude, recorded_at, speed, heading, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	return r.db.QueryRowContext(ctx, query,
		pos.DeviceID,
		pos.Latitude,
		pos.Longitude,
		pos.RecordedAt.UTC(),
		nullableFloat(pos.Speed),
		nullableInt(pos.Heading),
		time.Now().UTC(),
	).Scan(&pos.ID)
}

func (r *PositionRepository) QueryRange(ctx context.Context, deviceID int64, from, to time.Time) ([]models.Position, error) {
	query := r.dialect.rebind(`
		SELECT id, device_id, latitude, longitude, recorded_at, speed, heading
		FROM positions
		WHERE device_id = ? AND recorded_at BETWEEN ? AND ?
		ORDER BY recorded_at ASC, id ASC`)

	rows, err := r.db.QueryContext(ctx, query, deviceID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *PositionRepository) QueryRangeMulti(ctx context.Context, deviceIDs []int64, from, to time.Time) (map[int64][]models.Position, error) {
	result := make(map[int64][]models.Position, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return result, nil
	}
	match, args := r.dialect.anyOf("device_id", deviceIDs, nil)
	args = append(args, from.UTC(), to.UTC())
	query := r.dialect.rebind(`
		SELECT id, device_id, latitude, longitude, recorded_at, speed, heading
		FROM positions
		WHERE ` + match + ` AND recorded_at BETWEEN ? AND ?
		ORDER BY device_id, recorded_at ASC, id ASC`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		result[p.DeviceID] = append(result[p.DeviceID], p)
	}
	return result, rows.Err()
}

func scanPosition(s scanner) (models.Position, error) {
	var (
		p       models.Position
		speed   sql.NullFloat64
		heading sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.DeviceID, &p.Latitude, &p.Longitude, &p.RecordedAt, &speed, &heading); err != nil {
		return p, err
	}
	p.Speed = floatPtr(speed)
	if heading.Valid {
		h := int(heading.Int64)
		p.Heading = &h
	}
	return p, nil
}
