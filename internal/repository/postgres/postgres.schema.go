package postgres

import (
	"context"
	"fmt"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		device_serial TEXT,
		name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS serial_numbers (
		serial_number TEXT PRIMARY KEY,
		device_model TEXT NOT NULL,
		manufactured_date TIMESTAMPTZ NOT NULL,
		is_valid BOOLEAN NOT NULL DEFAULT TRUE,
		is_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		claimed_by TEXT,
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS device_status (
		serial_number TEXT PRIMARY KEY,
		device_type TEXT,
		firmware_version TEXT,
		battery_level INTEGER,
		signal_strength INTEGER,
		temperature DOUBLE PRECISION,
		last_weight DOUBLE PRECISION,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL REFERENCES devices(id),
		serial_number TEXT NOT NULL,
		account_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		weight DOUBLE PRECISION,
		occurred_at TIMESTAMPTZ NOT NULL,
		notified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_serial_time ON events (serial_number, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS iot_events (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		weight DOUBLE PRECISION,
		claim_status TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_iot_events_serial_time ON iot_events (serial_number, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		device_id TEXT,
		event_type TEXT NOT NULL,
		blob_key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size BIGINT NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL,
		event_id TEXT,
		event_source TEXT,
		match_strategy TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_serial_time ON images (serial_number, captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		account_id TEXT PRIMARY KEY,
		email_notifications BOOLEAN NOT NULL DEFAULT FALSE,
		notify_open BOOLEAN NOT NULL DEFAULT FALSE,
		notify_close BOOLEAN NOT NULL DEFAULT FALSE,
		notify_delivery BOOLEAN NOT NULL DEFAULT TRUE,
		notify_removal BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the ingestion tables when they are missing
func EnsureSchema(ctx context.Context, db database.DB) error {
	for _, query := range schemaQueries {
		if _, err := db.GetDB().ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	nuts.L.Infof("[PostgresDB] Schema ready (%d statements)", len(schemaQueries))
	return nil
}

// NewStore wires every postgres repository against one connection
func NewStore(db database.DB, health repository.HealthRepository) *repository.Store {
	return &repository.Store{
		Credentials: NewCredentialRepository(db),
		Devices:     NewDeviceRepository(db),
		Status:      NewStatusRepository(db),
		Health:      health,
		Events:      NewEventRepository(db),
		Images:      NewImageRepository(db),
		Preferences: NewPreferenceRepository(db),
	}
}
