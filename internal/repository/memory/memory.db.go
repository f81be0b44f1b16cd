// FilePath: internal/repository/memory/memory.db.go
package memory

import (
	"sync"
	"sync/atomic"

	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository"
)

// DB is an in-process store backing every repository interface
type DB struct {
	mu          sync.RWMutex
	credentials map[string]*models.Credential
	identities  map[string]*models.DeviceIdentity
	dashboards  map[string]*models.DashboardDevice
	status      map[string]*models.DeviceStatus
	health      []*models.HealthSample
	canonical   map[string]*models.CanonicalEvent
	orphans     map[string]*models.OrphanEvent
	images      map[string]*models.CapturedImage
	preferences map[string]*models.NotificationPreference

	writes atomic.Int64
}

// NewDB creates an empty in-process store
func NewDB() *DB {
	return &DB{
		credentials: make(map[string]*models.Credential),
		identities:  make(map[string]*models.DeviceIdentity),
		dashboards:  make(map[string]*models.DashboardDevice),
		status:      make(map[string]*models.DeviceStatus),
		canonical:   make(map[string]*models.CanonicalEvent),
		orphans:     make(map[string]*models.OrphanEvent),
		images:      make(map[string]*models.CapturedImage),
		preferences: make(map[string]*models.NotificationPreference),
	}
}

// Store returns the repository bundle over this DB
func (d *DB) Store() *repository.Store {
	return &repository.Store{
		Credentials: &CredentialRepo{db: d},
		Devices:     &DeviceRepo{db: d},
		Status:      &StatusRepo{db: d},
		Health:      &HealthRepo{db: d},
		Events:      &EventRepo{db: d},
		Images:      &ImageRepo{db: d},
		Preferences: &PreferenceRepo{db: d},
	}
}

// Writes counts mutating repository calls that changed state, not counting key usage stamps
func (d *DB) Writes() int64 {
	return d.writes.Load()
}

// SeedDashboardDevice registers a dashboard device row, as the account dashboard would
func (d *DB) SeedDashboardDevice(device models.DashboardDevice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dashboards[device.Serial] = &device
}

// SeedIdentity stores a device identity as is
func (d *DB) SeedIdentity(identity models.DeviceIdentity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[identity.Serial] = &identity
}

// SeedPreference stores an account's notification preferences
func (d *DB) SeedPreference(pref models.NotificationPreference) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preferences[pref.AccountID] = &pref
}

// CanonicalEvents returns a snapshot of all canonical events
func (d *DB) CanonicalEvents() []models.CanonicalEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.CanonicalEvent, 0, len(d.canonical))
	for _, e := range d.canonical {
		out = append(out, *e)
	}
	return out
}

// OrphanEvents returns a snapshot of all orphan events
func (d *DB) OrphanEvents() []models.OrphanEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.OrphanEvent, 0, len(d.orphans))
	for _, e := range d.orphans {
		out = append(out, *e)
	}
	return out
}

// HealthSamples returns a snapshot of all health samples
func (d *DB) HealthSamples() []models.HealthSample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.HealthSample, 0, len(d.health))
	for _, s := range d.health {
		out = append(out, *s)
	}
	return out
}

// IdentityCount returns the number of known serials
func (d *DB) IdentityCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.identities)
}
