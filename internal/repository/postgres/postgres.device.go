// FilePath: internal/repository/postgres/postgres.device.go
package postgres

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type DeviceRepo struct {
	PostgresBaseRepo
}

func NewDeviceRepository(db database.DB) *DeviceRepo {
	return &DeviceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *DeviceRepo) GetIdentity(ctx context.Context, serial string) (*models.DeviceIdentity, error) {
	identity := &models.DeviceIdentity{}
	query := `SELECT * FROM serial_numbers WHERE serial_number = $1`

	err := r.db.GetDB().GetContext(ctx, identity, query, serial)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("serial number not found", err).WithDetails(map[string]string{"serial": serial})
		}
		return nil, dbError("failed to get serial number", err)
	}
	return identity, nil
}

func (r *DeviceRepo) CreateIdentityIfAbsent(ctx context.Context, identity *models.DeviceIdentity) (bool, error) {
	query := `
		INSERT INTO serial_numbers (
			serial_number, device_model, manufactured_date, is_valid, is_claimed,
			claimed_by, claimed_at, created_at, updated_at
		) VALUES (
			:serial_number, :device_model, :manufactured_date, :is_valid, :is_claimed,
			:claimed_by, :claimed_at, :created_at, :updated_at
		)
		ON CONFLICT (serial_number) DO NOTHING`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, identity)
	if err != nil {
		return false, dbError("failed to register serial number", err)
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *DeviceRepo) SetValid(ctx context.Context, serial string, valid bool) error {
	query := `UPDATE serial_numbers SET is_valid = $1, updated_at = $2 WHERE serial_number = $3`
	result, err := r.db.GetDB().ExecContext(ctx, query, valid, time.Now().UTC(), serial)
	if err != nil {
		return dbError("failed to update serial number", err)
	}
	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFoundError("serial number not found", nil)
	}
	return nil
}

func (r *DeviceRepo) GetDashboardDevice(ctx context.Context, serial string) (*models.DashboardDevice, error) {
	device := &models.DashboardDevice{}
	query := `SELECT * FROM devices WHERE serial_number = $1`

	err := r.db.GetDB().GetContext(ctx, device, query, serial)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("dashboard device not found", err)
		}
		return nil, dbError("failed to get dashboard device", err)
	}
	return device, nil
}
