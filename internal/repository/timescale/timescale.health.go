// FilePath: internal/repository/timescale/timescale.health.go
package timescale

import (
	"context"
	"fmt"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const defaultSampleLimit = 200

// HealthRepo stores device health samples, as a hypertable when TimescaleDB is available
type HealthRepo struct {
	db         database.DB
	hypertable bool
}

func NewHealthRepository(ctx context.Context, db database.DB, hypertable bool, retention time.Duration) (*HealthRepo, error) {
	repo := &HealthRepo{db: db, hypertable: hypertable}
	if err := repo.initializeSchema(ctx); err != nil {
		return nil, err
	}
	if hypertable && retention > 0 {
		repo.setupRetentionPolicy(ctx, retention)
	}
	return repo, nil
}

func (r *HealthRepo) initializeSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS device_health (
			id TEXT NOT NULL,
			serial_number TEXT NOT NULL,
			device_id TEXT,
			battery_level INTEGER,
			signal_strength INTEGER,
			temperature DOUBLE PRECISION,
			weight DOUBLE PRECISION,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (id, recorded_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_health_serial_time
			ON device_health(serial_number, recorded_at DESC)`,
	}
	if r.hypertable {
		queries = append(queries, `SELECT create_hypertable('device_health', 'recorded_at',
			chunk_time_interval => INTERVAL '7 days',
			if_not_exists => TRUE
		)`)
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().ExecContext(ctx, query); err != nil {
			return errors.NewDatabaseError("failed to initialize health schema", err)
		}
	}
	return nil
}

func (r *HealthRepo) setupRetentionPolicy(ctx context.Context, retention time.Duration) {
	query := fmt.Sprintf(`SELECT add_retention_policy('device_health', INTERVAL '%d hours', if_not_exists => TRUE)`,
		int(retention.Hours()))
	if _, err := r.db.GetDB().ExecContext(ctx, query); err != nil {
		nuts.L.Warnf("[TimescaleDB] Failed to set up retention policy for device_health: %v", err)
	}
}

func (r *HealthRepo) Insert(ctx context.Context, sample *models.HealthSample) error {
	query := `
		INSERT INTO device_health (
			id, serial_number, device_id, battery_level, signal_strength, temperature, weight, recorded_at
		) VALUES (
			:id, :serial_number, :device_id, :battery_level, :signal_strength, :temperature, :weight, :recorded_at
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, sample); err != nil {
		return errors.NewDatabaseError("failed to insert health sample", err)
	}
	return nil
}

func (r *HealthRepo) List(ctx context.Context, serial string, since time.Time, limit int) ([]*models.HealthSample, error) {
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	samples := []*models.HealthSample{}
	query := `
		SELECT * FROM device_health
		WHERE serial_number = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3`

	if err := r.db.GetDB().SelectContext(ctx, &samples, query, serial, since, limit); err != nil {
		return nil, errors.NewDatabaseError("failed to list health samples", err)
	}
	return samples, nil
}

func (r *HealthRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM device_health WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete old health samples", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows, nil
}
