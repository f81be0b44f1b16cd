// FilePath: internal/repository/memory/memory.device.go
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type DeviceRepo struct {
	db *DB
}

func (r *DeviceRepo) GetIdentity(ctx context.Context, serial string) (*models.DeviceIdentity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	identity, ok := r.db.identities[serial]
	if !ok {
		return nil, errors.NewNotFoundError("serial number not found", nil).WithDetails(map[string]string{"serial": serial})
	}
	out := *identity
	return &out, nil
}

func (r *DeviceRepo) CreateIdentityIfAbsent(ctx context.Context, identity *models.DeviceIdentity) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.identities[identity.Serial]; ok {
		return false, nil
	}
	i := *identity
	r.db.identities[i.Serial] = &i
	r.db.writes.Add(1)
	return true, nil
}

func (r *DeviceRepo) SetValid(ctx context.Context, serial string, valid bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	identity, ok := r.db.identities[serial]
	if !ok {
		return errors.NewNotFoundError("serial number not found", nil)
	}
	identity.IsValid = valid
	identity.UpdatedAt = time.Now().UTC()
	r.db.writes.Add(1)
	return nil
}

func (r *DeviceRepo) GetDashboardDevice(ctx context.Context, serial string) (*models.DashboardDevice, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	device, ok := r.db.dashboards[serial]
	if !ok {
		return nil, errors.NewNotFoundError("dashboard device not found", nil)
	}
	out := *device
	return &out, nil
}

type StatusRepo struct {
	db *DB
}

func (r *StatusRepo) Get(ctx context.Context, serial string) (*models.DeviceStatus, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	status, ok := r.db.status[serial]
	if !ok {
		return nil, errors.NewNotFoundError("device status not found", nil)
	}
	out := *status
	return &out, nil
}

func (r *StatusRepo) Upsert(ctx context.Context, update *models.StatusUpdate) (*models.DeviceStatus, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	status, ok := r.db.status[update.Serial]
	if !ok {
		status = &models.DeviceStatus{Serial: update.Serial}
		r.db.status[update.Serial] = status
	}
	if update.DeviceType != nil {
		status.DeviceType = update.DeviceType
	}
	if update.FirmwareVersion != nil {
		status.FirmwareVersion = update.FirmwareVersion
	}
	if update.BatteryLevel != nil {
		status.BatteryLevel = update.BatteryLevel
	}
	if update.SignalStrength != nil {
		status.SignalStrength = update.SignalStrength
	}
	if update.Temperature != nil {
		status.Temperature = update.Temperature
	}
	if update.Weight != nil {
		status.LastWeight = update.Weight
	}
	seen := update.SeenAt
	status.IsOnline = true
	status.LastSeen = &seen
	status.UpdatedAt = seen
	r.db.writes.Add(1)
	out := *status
	return &out, nil
}

func (r *StatusRepo) MarkOffline(ctx context.Context, seenBefore time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, status := range r.db.status {
		if status.IsOnline && status.LastSeen != nil && status.LastSeen.Before(seenBefore) {
			status.IsOnline = false
			status.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	if n > 0 {
		r.db.writes.Add(1)
	}
	return n, nil
}

type HealthRepo struct {
	db *DB
}

func (r *HealthRepo) Insert(ctx context.Context, sample *models.HealthSample) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := *sample
	r.db.health = append(r.db.health, &s)
	r.db.writes.Add(1)
	return nil
}

func (r *HealthRepo) List(ctx context.Context, serial string, since time.Time, limit int) ([]*models.HealthSample, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*models.HealthSample{}
	for _, s := range r.db.health {
		if s.Serial == serial && !s.RecordedAt.Before(since) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *HealthRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.health[:0]
	var n int64
	for _, s := range r.db.health {
		if s.RecordedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	r.db.health = kept
	return n, nil
}

type PreferenceRepo struct {
	db *DB
}

func (r *PreferenceRepo) Get(ctx context.Context, accountID string) (*models.NotificationPreference, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	pref, ok := r.db.preferences[accountID]
	if !ok {
		return nil, errors.NewNotFoundError("notification preferences not found", nil)
	}
	out := *pref
	return &out, nil
}
