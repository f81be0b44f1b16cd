// FilePath: internal/identity/reconciler.go
package identity

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Reconciler resolves a serial to its identity and claim state
type Reconciler struct {
	devices repository.DeviceRepository
	timeout time.Duration
	now     func() time.Time
}

func NewReconciler(devices repository.DeviceRepository, timeout time.Duration) *Reconciler {
	return &Reconciler{devices: devices, timeout: timeout, now: time.Now}
}

// Reconcile returns the claim state of serial, registering unknown serials and reactivating invalid ones
func (r *Reconciler) Reconcile(ctx context.Context, serial string) (*models.Reconciliation, error) {
	identity, created, err := r.ensureIdentity(ctx, serial)
	if err != nil {
		return nil, err
	}

	if !identity.IsValid {
		if err := r.withTimeout(ctx, func(ctx context.Context) error {
			return r.devices.SetValid(ctx, serial, true)
		}); err != nil {
			return nil, errors.NewInternalError("failed to reactivate serial number", err)
		}
		identity.IsValid = true
		nuts.L.Infof("[Identity] Reactivated serial %s", serial)
	}

	dashboard, err := r.dashboard(ctx, serial)
	if err != nil {
		return nil, err
	}

	return resolve(identity, dashboard, created), nil
}

// Lookup resolves serial without registering it; unknown serials are NotFound
func (r *Reconciler) Lookup(ctx context.Context, serial string) (*models.Reconciliation, error) {
	var identity *models.DeviceIdentity
	err := r.withTimeout(ctx, func(ctx context.Context) (err error) {
		identity, err = r.devices.GetIdentity(ctx, serial)
		return err
	})
	if err != nil {
		return nil, err
	}
	dashboard, err := r.dashboard(ctx, serial)
	if err != nil {
		return nil, err
	}
	return resolve(identity, dashboard, false), nil
}

// Seed registers a serial explicitly, as administrative provisioning does
func (r *Reconciler) Seed(ctx context.Context, identity *models.DeviceIdentity) (bool, error) {
	now := r.now().UTC()
	if identity.Model == "" {
		identity.Model = models.DefaultDeviceModel
	}
	if identity.ManufacturedDate.IsZero() {
		identity.ManufacturedDate = now
	}
	identity.IsValid = true
	identity.CreatedAt = now
	identity.UpdatedAt = now

	var created bool
	err := r.withTimeout(ctx, func(ctx context.Context) (err error) {
		created, err = r.devices.CreateIdentityIfAbsent(ctx, identity)
		return err
	})
	if err != nil {
		return false, errors.NewInternalError("failed to register serial number", err)
	}
	return created, nil
}

func (r *Reconciler) ensureIdentity(ctx context.Context, serial string) (*models.DeviceIdentity, bool, error) {
	var identity *models.DeviceIdentity
	err := r.withTimeout(ctx, func(ctx context.Context) (err error) {
		identity, err = r.devices.GetIdentity(ctx, serial)
		return err
	})
	if err == nil {
		return identity, false, nil
	}
	if !errors.IsNotFound(err) {
		return nil, false, errors.NewInternalError("failed to look up serial number", err)
	}

	now := r.now().UTC()
	identity = &models.DeviceIdentity{
		Serial:           serial,
		Model:            models.DefaultDeviceModel,
		ManufacturedDate: now,
		IsValid:          true,
		IsClaimed:        false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	var created bool
	err = r.withTimeout(ctx, func(ctx context.Context) (err error) {
		created, err = r.devices.CreateIdentityIfAbsent(ctx, identity)
		return err
	})
	if err != nil {
		return nil, false, errors.NewInternalError("failed to register serial number", err)
	}
	if !created {
		// a concurrent request registered it first
		err = r.withTimeout(ctx, func(ctx context.Context) (err error) {
			identity, err = r.devices.GetIdentity(ctx, serial)
			return err
		})
		if err != nil {
			return nil, false, errors.NewInternalError("failed to look up serial number", err)
		}
		return identity, false, nil
	}

	nuts.L.Infof("[Identity] Auto-registered serial %s", serial)
	return identity, true, nil
}

func (r *Reconciler) dashboard(ctx context.Context, serial string) (*models.DashboardDevice, error) {
	var device *models.DashboardDevice
	err := r.withTimeout(ctx, func(ctx context.Context) (err error) {
		device, err = r.devices.GetDashboardDevice(ctx, serial)
		return err
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to look up dashboard device", err)
	}
	return device, nil
}

func (r *Reconciler) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(opCtx)
}

// resolve computes claim state as the OR of the identity flag and a dashboard link
func resolve(identity *models.DeviceIdentity, dashboard *models.DashboardDevice, created bool) *models.Reconciliation {
	rec := &models.Reconciliation{
		Identity:  identity,
		Dashboard: dashboard,
		Created:   created,
		Status:    models.ClaimStatusUnclaimed,
	}

	switch {
	case dashboard != nil:
		account := dashboard.AccountID
		rec.Claimed = true
		rec.AccountID = &account
		rec.Status = models.ClaimStatusClaimedDevice
	case identity.IsClaimed && identity.ClaimedBy != nil && *identity.ClaimedBy != "":
		account := *identity.ClaimedBy
		rec.Claimed = true
		rec.AccountID = &account
		rec.Status = models.ClaimStatusClaimedButNotLinked
	case identity.IsClaimed:
		nuts.L.Warnf("[Identity] Serial %s is flagged claimed without an owner", identity.Serial)
		rec.Claimed = true
		rec.Status = models.ClaimStatusClaimedButNotLinked
	}
	return rec
}
