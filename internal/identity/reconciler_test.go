package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository/memory"
)

func TestReconcileRegistersUnknownSerialOnce(t *testing.T) {
	db := memory.NewDB()
	r := NewReconciler(db.Store().Devices, time.Second)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, "SN-NEW")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created || !first.Identity.IsValid || first.Claimed {
		t.Errorf("unexpected first reconciliation: %+v", first)
	}
	if first.Status != models.ClaimStatusUnclaimed {
		t.Errorf("status = %s", first.Status)
	}

	second, err := r.Reconcile(ctx, "SN-NEW")
	if err != nil {
		t.Fatal(err)
	}
	if second.Created {
		t.Error("second reconciliation must not create again")
	}
	if n := db.IdentityCount(); n != 1 {
		t.Errorf("identity count = %d, want 1", n)
	}
}

func TestReconcileConcurrentRegistration(t *testing.T) {
	db := memory.NewDB()
	r := NewReconciler(db.Store().Devices, time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := r.Reconcile(ctx, "SN-RACE")
			if err != nil {
				t.Error(err)
				return
			}
			if rec.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 || db.IdentityCount() != 1 {
		t.Errorf("created=%d identities=%d, want 1/1", created, db.IdentityCount())
	}
}

func TestReconcileReactivatesInvalidSerial(t *testing.T) {
	db := memory.NewDB()
	db.SeedIdentity(models.DeviceIdentity{Serial: "SN-OFF", Model: "M1", IsValid: false})
	r := NewReconciler(db.Store().Devices, time.Second)

	rec, err := r.Reconcile(context.Background(), "SN-OFF")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Identity.IsValid {
		t.Error("identity should be reactivated")
	}
	stored, _ := db.Store().Devices.GetIdentity(context.Background(), "SN-OFF")
	if !stored.IsValid {
		t.Error("reactivation not persisted")
	}
}

func TestClaimStateIsOrOfBothSignals(t *testing.T) {
	owner := "acct_1"
	tests := []struct {
		name       string
		identity   models.DeviceIdentity
		dashboard  *models.DashboardDevice
		wantClaim  bool
		wantOwner  bool
		wantStatus models.ClaimStatus
	}{
		{
			name:       "neither",
			identity:   models.DeviceIdentity{Serial: "S", IsValid: true},
			wantStatus: models.ClaimStatusUnclaimed,
		},
		{
			name:       "dashboard only",
			identity:   models.DeviceIdentity{Serial: "S", IsValid: true},
			dashboard:  &models.DashboardDevice{ID: "dev_1", Serial: "S", AccountID: owner},
			wantClaim:  true,
			wantOwner:  true,
			wantStatus: models.ClaimStatusClaimedDevice,
		},
		{
			name:       "flag only",
			identity:   models.DeviceIdentity{Serial: "S", IsValid: true, IsClaimed: true, ClaimedBy: &owner},
			wantClaim:  true,
			wantOwner:  true,
			wantStatus: models.ClaimStatusClaimedButNotLinked,
		},
		{
			name:       "flag without owner",
			identity:   models.DeviceIdentity{Serial: "S", IsValid: true, IsClaimed: true},
			wantClaim:  true,
			wantStatus: models.ClaimStatusClaimedButNotLinked,
		},
		{
			name:       "both",
			identity:   models.DeviceIdentity{Serial: "S", IsValid: true, IsClaimed: true, ClaimedBy: &owner},
			dashboard:  &models.DashboardDevice{ID: "dev_1", Serial: "S", AccountID: owner},
			wantClaim:  true,
			wantOwner:  true,
			wantStatus: models.ClaimStatusClaimedDevice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memory.NewDB()
			db.SeedIdentity(tt.identity)
			if tt.dashboard != nil {
				db.SeedDashboardDevice(*tt.dashboard)
			}
			r := NewReconciler(db.Store().Devices, time.Second)

			rec, err := r.Reconcile(context.Background(), "S")
			if err != nil {
				t.Fatal(err)
			}
			if rec.Claimed != tt.wantClaim || rec.Status != tt.wantStatus {
				t.Errorf("claimed=%v status=%s, want %v/%s", rec.Claimed, rec.Status, tt.wantClaim, tt.wantStatus)
			}
			if (rec.AccountID != nil) != tt.wantOwner {
				t.Errorf("account = %v, want owner %v", rec.AccountID, tt.wantOwner)
			}
		})
	}
}

func TestLookupDoesNotRegister(t *testing.T) {
	db := memory.NewDB()
	r := NewReconciler(db.Store().Devices, time.Second)

	_, err := r.Lookup(context.Background(), "SN-GHOST")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if db.IdentityCount() != 0 {
		t.Error("lookup must not register serials")
	}
}
