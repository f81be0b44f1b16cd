// FilePath: internal/repository/postgres/postgres.status.go
package postgres

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type StatusRepo struct {
	PostgresBaseRepo
}

func NewStatusRepository(db database.DB) *StatusRepo {
	return &StatusRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *StatusRepo) Get(ctx context.Context, serial string) (*models.DeviceStatus, error) {
	status := &models.DeviceStatus{}
	query := `SELECT * FROM device_status WHERE serial_number = $1`

	err := r.db.GetDB().GetContext(ctx, status, query, serial)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("device status not found", err)
		}
		return nil, dbError("failed to get device status", err)
	}
	return status, nil
}

// Upsert never nulls out a known value: absent fields fall back to the stored row
func (r *StatusRepo) Upsert(ctx context.Context, update *models.StatusUpdate) (*models.DeviceStatus, error) {
	query := `
		INSERT INTO device_status (
			serial_number, device_type, firmware_version, battery_level, signal_strength,
			temperature, last_weight, is_online, last_seen, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		ON CONFLICT (serial_number) DO UPDATE SET
			device_type = COALESCE(EXCLUDED.device_type, device_status.device_type),
			firmware_version = COALESCE(EXCLUDED.firmware_version, device_status.firmware_version),
			battery_level = COALESCE(EXCLUDED.battery_level, device_status.battery_level),
			signal_strength = COALESCE(EXCLUDED.signal_strength, device_status.signal_strength),
			temperature = COALESCE(EXCLUDED.temperature, device_status.temperature),
			last_weight = COALESCE(EXCLUDED.last_weight, device_status.last_weight),
			is_online = TRUE,
			last_seen = EXCLUDED.last_seen,
			updated_at = EXCLUDED.updated_at
		RETURNING *`

	status := &models.DeviceStatus{}
	err := r.db.GetDB().GetContext(ctx, status, query,
		update.Serial, update.DeviceType, update.FirmwareVersion, update.BatteryLevel,
		update.SignalStrength, update.Temperature, update.Weight, update.SeenAt,
	)
	if err != nil {
		return nil, dbError("failed to update device status", err)
	}
	return status, nil
}

func (r *StatusRepo) MarkOffline(ctx context.Context, seenBefore time.Time) (int64, error) {
	query := `UPDATE device_status SET is_online = FALSE, updated_at = NOW() WHERE is_online = TRUE AND last_seen < $1`
	result, err := r.db.GetDB().ExecContext(ctx, query, seenBefore)
	if err != nil {
		return 0, dbError("failed to mark devices offline", err)
	}
	return affected(result)
}
