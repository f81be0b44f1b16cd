// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/models"
)

// CredentialRepository stores hashed API keys
type CredentialRepository interface {
	Create(ctx context.Context, cred *models.Credential) error
	// FindActive returns the active credential of the given class with this hash, or a NotFound error
	FindActive(ctx context.Context, keyHash string, class models.CredentialClass) (*models.Credential, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// DeviceRepository stores device identities and dashboard links
type DeviceRepository interface {
	GetIdentity(ctx context.Context, serial string) (*models.DeviceIdentity, error)
	// CreateIdentityIfAbsent inserts the identity unless the serial exists; created reports which happened
	CreateIdentityIfAbsent(ctx context.Context, identity *models.DeviceIdentity) (created bool, err error)
	SetValid(ctx context.Context, serial string, valid bool) error
	// GetDashboardDevice returns the dashboard device row for a serial, or a NotFound error
	GetDashboardDevice(ctx context.Context, serial string) (*models.DashboardDevice, error)
}

// StatusRepository stores the per-serial status snapshot
type StatusRepository interface {
	Get(ctx context.Context, serial string) (*models.DeviceStatus, error)
	// Upsert applies the update, keeping stored values for nil fields
	Upsert(ctx context.Context, update *models.StatusUpdate) (*models.DeviceStatus, error)
	MarkOffline(ctx context.Context, seenBefore time.Time) (int64, error)
}

// HealthRepository stores historized health samples
type HealthRepository interface {
	Insert(ctx context.Context, sample *models.HealthSample) error
	List(ctx context.Context, serial string, since time.Time, limit int) ([]*models.HealthSample, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// EventRepository stores canonical and orphan events
type EventRepository interface {
	CreateCanonical(ctx context.Context, event *models.CanonicalEvent) error
	CreateOrphan(ctx context.Context, event *models.OrphanEvent) error
	GetCanonical(ctx context.Context, id string) (*models.CanonicalEvent, error)
	// Find returns events of both storage domains ordered by occurrence, newest first
	Find(ctx context.Context, query models.EventQuery) ([]models.EventRef, error)
	// MarkNotified claims the event for notification; false means it was already claimed
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
}

// ImageRepository stores captured image metadata
type ImageRepository interface {
	Create(ctx context.Context, image *models.CapturedImage) error
	Get(ctx context.Context, id string) (*models.CapturedImage, error)
	List(ctx context.Context, query models.ImageQuery) ([]*models.CapturedImage, error)
	ListUnmatched(ctx context.Context, serial string, from, to time.Time) ([]*models.CapturedImage, error)
	GetByEvent(ctx context.Context, eventID string) (*models.CapturedImage, error)
	// AttachEvent links an unmatched image; false means it was matched meanwhile
	AttachEvent(ctx context.Context, imageID string, event models.EventRef, strategy string) (bool, error)
}

// PreferenceRepository reads account notification preferences
type PreferenceRepository interface {
	Get(ctx context.Context, accountID string) (*models.NotificationPreference, error)
}

// BlobStore stores image bytes under opaque keys
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// Store bundles the repositories the ingestion engine works against
type Store struct {
	Credentials CredentialRepository
	Devices     DeviceRepository
	Status      StatusRepository
	Health      HealthRepository
	Events      EventRepository
	Images      ImageRepository
	Preferences PreferenceRepository
}
